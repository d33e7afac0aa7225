// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers implements the auth API that bearer-token clients talk to.
type AuthHandlers struct {
	managed  *identity.Managed
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(managed *identity.Managed, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		managed:  managed,
		sessions: sessions,
	}
}

// Login verifies a credential and issues a bearer token. Admin accounts
// additionally get the signed console cookie, so one login serves both
// the API and the waitlist console.
func (h *AuthHandlers) Login(c echo.Context) error {
	var cred identity.Credential
	if err := c.Bind(&cred); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if cred.Email == "" || cred.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password are required"})
	}

	ident, tok, err := h.managed.Authenticate(c.Request().Context(), cred)
	if err != nil {
		// Bad credentials answer 401 here; bearer clients key on the status.
		if errors.Is(err, identity.ErrInvalidCredential) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		slog.Error("login failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	if ident.IsAdmin && h.sessions != nil {
		cookie, err := h.sessions.Create(tok, ident.Email)
		if err != nil {
			slog.Error("failed to create admin session cookie", "error", err)
		} else {
			c.SetCookie(cookie)
		}
	}

	return c.JSON(http.StatusOK, identity.LoginResponse{
		AccessToken: tok,
		User:        ident,
	})
}

// Register creates an account directly against the managed backend.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req identity.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password are required"})
	}

	profile := identity.Profile{
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		ContradictionTolerance: req.ContradictionTolerance,
		BeliefSensitivity:      req.BeliefSensitivity,
	}
	cred := identity.Credential{Email: req.Email, Password: req.Password}

	ident, err := h.managed.Register(c.Request().Context(), profile, cred)
	if err != nil {
		if resp := identityError(c, err); resp != nil {
			return resp
		}
		slog.Error("registration failed", "error", err, "email", req.Email)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, map[string]any{"user": ident})
}

// Me resolves the bearer token from the Authorization header to its identity.
func (h *AuthHandlers) Me(c echo.Context) error {
	tok := bearerToken(c)
	if tok == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	}

	ident, err := h.managed.CurrentIdentity(c.Request().Context(), tok)
	if err != nil {
		if resp := identityError(c, err); resp != nil {
			return resp
		}
		slog.Error("identity lookup failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, ident)
}

// ResetRequest is the request body for a credential reset.
type ResetRequest struct {
	Email string `json:"email"`
}

// Reset triggers a credential reset. The response is success-shaped whether
// or not the account exists, so the endpoint cannot be used to enumerate
// accounts.
func (h *AuthHandlers) Reset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email is required"})
	}

	if err := h.managed.ResetCredential(c.Request().Context(), req.Email); err != nil {
		slog.Warn("credential reset failed", "error", err, "email", req.Email)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Logout revokes the bearer token, if one was sent, and clears the console
// cookie. Always succeeds.
func (h *AuthHandlers) Logout(c echo.Context) error {
	if tok := bearerToken(c); tok != "" {
		if err := h.managed.SignOut(c.Request().Context(), tok); err != nil {
			slog.Warn("sign out failed", "error", err)
		}
	}
	if h.sessions != nil {
		c.SetCookie(h.sessions.Clear())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
