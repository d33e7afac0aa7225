// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/fischmanb/memduo-gate/internal/handlers"
	"github.com/fischmanb/memduo-gate/internal/models"
	"github.com/fischmanb/memduo-gate/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitlistSubmit(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	h := handlers.NewWaitlist(repo)

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/waitlist", strings.NewReader(body))

	err := h.Submit(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var sub models.WaitlistSubmission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "ada@example.com", sub.Email)
	assert.Equal(t, models.StatusPending, sub.Status)
}

func TestWaitlistSubmit_NormalizesEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	h := handlers.NewWaitlist(repo)

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"  Ada@Example.COM "}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/waitlist", strings.NewReader(body))

	err := h.Submit(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var sub models.WaitlistSubmission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "ada@example.com", sub.Email)
}

func TestWaitlistSubmit_Duplicate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	h := handlers.NewWaitlist(repo)
	testutil.NewTestSubmission(t, repo, "ada@example.com")

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/waitlist", strings.NewReader(body))

	err := h.Submit(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), models.StatusPending)
}

func TestWaitlistSubmit_InvalidEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	h := handlers.NewWaitlist(repo)

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"not-an-email"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/waitlist", strings.NewReader(body))

	err := h.Submit(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWaitlistSubmit_MissingName(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	h := handlers.NewWaitlist(repo)

	body := `{"first_name":"","last_name":"Lovelace","email":"ada@example.com"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/waitlist", strings.NewReader(body))

	err := h.Submit(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
