// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/fischmanb/memduo-gate/internal/config"
	"github.com/fischmanb/memduo-gate/internal/handlers"
	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/services/session"
	"github.com/fischmanb/memduo-gate/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// testHashKey is a valid 32-byte hex key for the session manager in tests.
const testHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type authEnv struct {
	db      *sqlx.DB
	repo    *repository.Repository
	managed *identity.Managed
	auth    *handlers.AuthHandlers
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	db, repo := testutil.NewTestDB(t)
	managed := identity.NewManaged(repo, nil)

	sessions, err := session.NewManager(&config.SessionConfig{
		CookieName: "_test_session",
		MaxAge:     3600,
		HashKey:    testHashKey,
	})
	require.NoError(t, err)

	return &authEnv{
		db:      db,
		repo:    repo,
		managed: managed,
		auth:    handlers.NewAuth(managed, sessions),
	}
}

// registerAccount creates an account through the managed backend.
func (env *authEnv) registerAccount(t *testing.T, email, password string) *identity.Identity {
	t.Helper()
	ident, err := env.managed.Register(context.Background(),
		identity.Profile{FirstName: "Ada", LastName: "Lovelace"},
		identity.Credential{Email: email, Password: password})
	require.NoError(t, err)
	return ident
}

// makeAdmin flips the admin flag on an existing account.
func (env *authEnv) makeAdmin(t *testing.T, email string) {
	t.Helper()
	_, err := env.db.Exec("UPDATE users SET is_admin = 1 WHERE email = ?", email)
	require.NoError(t, err)
}

func TestRegister(t *testing.T) {
	env := newAuthEnv(t)

	body := `{"email":"ada@example.com","password":"correct-horse","first_name":"Ada","last_name":"Lovelace"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/register", strings.NewReader(body))

	err := env.auth.Register(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		User *identity.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.User.UID)
}

func TestRegister_Duplicate(t *testing.T) {
	env := newAuthEnv(t)
	env.registerAccount(t, "ada@example.com", "correct-horse")

	body := `{"email":"ada@example.com","password":"correct-horse"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/register", strings.NewReader(body))

	err := env.auth.Register(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_WeakPassword(t *testing.T) {
	env := newAuthEnv(t)

	body := `{"email":"ada@example.com","password":"short"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/register", strings.NewReader(body))

	err := env.auth.Register(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newAuthEnv(t)
	env.registerAccount(t, "ada@example.com", "correct-horse")

	body := `{"email":"ada@example.com","password":"correct-horse"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/login", strings.NewReader(body))

	err := env.auth.Login(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp identity.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "ada@example.com", resp.User.Email)

	// Non-admin login issues no console cookie.
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newAuthEnv(t)
	env.registerAccount(t, "ada@example.com", "correct-horse")

	body := `{"email":"ada@example.com","password":"wrong-horse"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/login", strings.NewReader(body))

	err := env.auth.Login(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	env := newAuthEnv(t)

	body := `{"email":"ghost@example.com","password":"correct-horse"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/login", strings.NewReader(body))

	err := env.auth.Login(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_AdminGetsConsoleCookie(t *testing.T) {
	env := newAuthEnv(t)
	env.registerAccount(t, "admin@example.com", "correct-horse")
	env.makeAdmin(t, "admin@example.com")

	body := `{"email":"admin@example.com","password":"correct-horse"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/login", strings.NewReader(body))

	err := env.auth.Login(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_test_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestMe(t *testing.T) {
	env := newAuthEnv(t)
	env.registerAccount(t, "ada@example.com", "correct-horse")

	_, tok, err := env.managed.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	c, rec := testutil.NewEchoContextWithHeaders(echo.New(), http.MethodGet, "/auth/me", nil,
		map[string]string{"Authorization": "Bearer " + tok})

	err = env.auth.Me(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var ident identity.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ident))
	assert.Equal(t, "ada@example.com", ident.Email)
}

func TestMe_NoToken(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/auth/me", nil)

	err := env.auth.Me(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_UnknownToken(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := testutil.NewEchoContextWithHeaders(echo.New(), http.MethodGet, "/auth/me", nil,
		map[string]string{"Authorization": "Bearer bogus"})

	err := env.auth.Me(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReset_AlwaysSuccessShaped(t *testing.T) {
	env := newAuthEnv(t)

	body := `{"email":"nobody@example.com"}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/reset", strings.NewReader(body))

	err := env.auth.Reset(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newAuthEnv(t)
	env.registerAccount(t, "ada@example.com", "correct-horse")

	_, tok, err := env.managed.Authenticate(context.Background(),
		identity.Credential{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	c, rec := testutil.NewEchoContextWithHeaders(echo.New(), http.MethodPost, "/auth/logout", nil,
		map[string]string{"Authorization": "Bearer " + tok})

	err = env.auth.Logout(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The token is now dead.
	c2, rec2 := testutil.NewEchoContextWithHeaders(echo.New(), http.MethodGet, "/auth/me", nil,
		map[string]string{"Authorization": "Bearer " + tok})
	require.NoError(t, env.auth.Me(c2))
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestLogout_NoToken(t *testing.T) {
	env := newAuthEnv(t)

	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/auth/logout", nil)

	err := env.auth.Logout(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
