// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers for the public API, the
// invitation setup flow, and the admin waitlist console.
package handlers

import (
	"net/http"

	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains the cross-cutting HTTP handlers.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
