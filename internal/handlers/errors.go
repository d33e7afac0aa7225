// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/services/lifecycle"
	"github.com/labstack/echo/v4"
)

// setupTokenError maps a setup token failure to its HTTP response. Each
// failure kind keeps its own status so clients can guide the user: a typo,
// a dead link, and a replay all read differently.
func setupTokenError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrTokenInvalid):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "invalid setup token"})
	case errors.Is(err, lifecycle.ErrTokenExpired):
		return c.JSON(http.StatusGone, map[string]string{"error": "setup token expired"})
	case errors.Is(err, lifecycle.ErrAlreadyConsumed):
		return c.JSON(http.StatusConflict, map[string]string{"error": "setup token already used"})
	}
	return nil
}

// identityError maps identity backend failures to their HTTP response.
func identityError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredential):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid credentials"})
	case errors.Is(err, identity.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "account already exists"})
	case errors.Is(err, identity.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	case errors.Is(err, identity.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "account not found"})
	}
	return nil
}

// notFoundOr500 maps repository misses to 404 and everything else to 500.
func notFoundOr500(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
