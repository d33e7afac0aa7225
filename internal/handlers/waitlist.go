// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/labstack/echo/v4"
)

// WaitlistHandlers implements the public waitlist intake.
type WaitlistHandlers struct {
	repo *repository.Repository
}

// NewWaitlist creates a new WaitlistHandlers instance.
func NewWaitlist(repo *repository.Repository) *WaitlistHandlers {
	return &WaitlistHandlers{repo: repo}
}

// SubmitRequest is the request body for joining the waitlist.
type SubmitRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Submit records a new waitlist submission. One submission per email;
// a repeat submission answers 409 with the current status.
func (h *WaitlistHandlers) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.FirstName == "" || req.LastName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "first and last name are required"})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid email address"})
	}

	ctx := c.Request().Context()

	if existing, err := h.repo.GetWaitlistSubmissionByEmail(ctx, req.Email); err == nil {
		return c.JSON(http.StatusConflict, map[string]string{
			"error":  "email already on the waitlist",
			"status": existing.Status,
		})
	} else if !errors.Is(err, repository.ErrNotFound) {
		slog.Error("waitlist lookup failed", "error", err, "email", req.Email)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	sub, err := h.repo.CreateWaitlistSubmission(ctx, req.FirstName, req.LastName, req.Email)
	if err != nil {
		slog.Error("waitlist submission failed", "error", err, "email", req.Email)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	slog.Info("waitlist submission created", "id", sub.ID, "email", sub.Email)

	return c.JSON(http.StatusCreated, sub)
}
