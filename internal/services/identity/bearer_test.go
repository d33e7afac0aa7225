// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBearerTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var cred identity.Credential
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cred))
		if cred.Email != "ada@example.com" || cred.Password != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(identity.LoginResponse{
			AccessToken: "bearer-token-1",
			User:        &identity.Identity{UID: "uid-1", Email: cred.Email},
		})
	})

	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req identity.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Email == "taken@example.com" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": identity.Identity{UID: "uid-2", Email: req.Email},
		})
	})

	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bearer-token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(identity.Identity{UID: "uid-1", Email: "ada@example.com"})
	})

	mux.HandleFunc("POST /auth/reset", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBearerAuthenticate(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	ident, tok, err := client.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})

	require.NoError(t, err)
	assert.Equal(t, "bearer-token-1", tok)
	assert.Equal(t, "uid-1", ident.UID)
}

func TestBearerAuthenticate_InvalidCredential(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	_, _, err := client.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "wrong"})

	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestBearerRegister(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	ident, err := client.Register(context.Background(),
		identity.Profile{FirstName: "Ada"},
		identity.Credential{Email: "new@example.com", Password: "correct-horse"})

	require.NoError(t, err)
	assert.Equal(t, "new@example.com", ident.Email)
}

func TestBearerRegister_AlreadyExists(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	_, err := client.Register(context.Background(),
		identity.Profile{},
		identity.Credential{Email: "taken@example.com", Password: "correct-horse"})

	assert.ErrorIs(t, err, identity.ErrAlreadyExists)
}

func TestBearerCurrentIdentity(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	ident, err := client.CurrentIdentity(context.Background(), "bearer-token-1")

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", ident.Email)
}

func TestBearerCurrentIdentity_Unauthenticated(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	_, err := client.CurrentIdentity(context.Background(), "stale-token")

	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestBearerCurrentIdentity_EmptyToken(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	_, err := client.CurrentIdentity(context.Background(), "")

	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestBearerBackendUnavailable(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())
	srv.Close()

	_, _, err := client.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})

	assert.ErrorIs(t, err, identity.ErrBackendUnavailable)
}

func TestBearerResetCredential(t *testing.T) {
	srv := newBearerTestServer(t)
	client := identity.NewBearerClient(srv.URL, srv.Client())

	assert.NoError(t, client.ResetCredential(context.Background(), "ada@example.com"))
}
