// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fischmanb/memduo-gate/internal/models"
	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/services/lifecycle"
	"github.com/fischmanb/memduo-gate/internal/services/session"
	"github.com/labstack/echo/v4"
)

// adminContextKey is the echo context key holding the admin's identity.
const adminContextKey = "admin"

// AdminHandlers implements the operator console for reviewing the waitlist.
type AdminHandlers struct {
	repo      *repository.Repository
	lifecycle *lifecycle.Service
	managed   *identity.Managed
	sessions  *session.Manager
}

// NewAdmin creates a new AdminHandlers instance.
func NewAdmin(repo *repository.Repository, lc *lifecycle.Service, managed *identity.Managed, sessions *session.Manager) *AdminHandlers {
	return &AdminHandlers{
		repo:      repo,
		lifecycle: lc,
		managed:   managed,
		sessions:  sessions,
	}
}

// RequireAdmin gates a route group on an admin identity. It accepts either
// the signed console cookie or a bearer token; both resolve through the
// managed backend so revoked sessions lose access immediately.
func (h *AdminHandlers) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok := bearerToken(c)
		if tok == "" && h.sessions != nil {
			if data, err := h.sessions.Parse(c.Request()); err == nil && data != nil {
				tok = data.Token
			}
		}
		if tok == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		}

		ident, err := h.managed.CurrentIdentity(c.Request().Context(), tok)
		if err != nil {
			if resp := identityError(c, err); resp != nil {
				return resp
			}
			slog.Error("admin identity lookup failed", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		if !ident.IsAdmin {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "admin access required"})
		}

		c.Set(adminContextKey, ident)
		return next(c)
	}
}

// adminIdentity returns the identity stored by RequireAdmin.
func adminIdentity(c echo.Context) *identity.Identity {
	ident, _ := c.Get(adminContextKey).(*identity.Identity)
	return ident
}

// ListWaitlist returns waitlist submissions, optionally filtered by status.
func (h *AdminHandlers) ListWaitlist(c echo.Context) error {
	status := c.QueryParam("status")
	switch status {
	case "", models.StatusPending, models.StatusApproved, models.StatusRejected, models.StatusRegistered:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown status filter"})
	}

	subs, err := h.repo.ListWaitlistSubmissions(c.Request().Context(), status)
	if err != nil {
		slog.Error("waitlist listing failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, map[string]any{"submissions": subs})
}

// ReviewRequest is the request body for approve and reject decisions.
type ReviewRequest struct {
	Notes string `json:"notes"`
}

// ApproveResponse reports an approval plus whether the invitation mail
// went out. A failed send leaves the approval standing; the token can be
// resent later.
type ApproveResponse struct {
	ApprovedUser *models.ApprovedUser `json:"approved_user"`
	EmailSent    bool                 `json:"email_sent"`
}

// Approve approves a submission, mints (or rotates) its setup token, and
// sends the invitation email.
func (h *AdminHandlers) Approve(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid submission id"})
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	admin := adminIdentity(c)

	approved, err := h.lifecycle.Approve(c.Request().Context(), id, admin.Email, req.Notes)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, ApproveResponse{ApprovedUser: approved, EmailSent: true})
	case errors.Is(err, lifecycle.ErrEmailDelivery):
		// Approval stands; the operator can resend.
		return c.JSON(http.StatusOK, ApproveResponse{ApprovedUser: approved, EmailSent: false})
	case errors.Is(err, lifecycle.ErrSubmissionRegistered):
		return c.JSON(http.StatusConflict, map[string]string{"error": "submission already registered"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "submission not found"})
	default:
		slog.Error("approval failed", "error", err, "submission_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// Reject marks a submission rejected.
func (h *AdminHandlers) Reject(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid submission id"})
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	admin := adminIdentity(c)

	switch err := h.lifecycle.Reject(c.Request().Context(), id, admin.Email, req.Notes); {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, lifecycle.ErrSubmissionRegistered):
		return c.JSON(http.StatusConflict, map[string]string{"error": "submission already registered"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "submission not found"})
	default:
		slog.Error("rejection failed", "error", err, "submission_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// Resend rotates the setup token for an approved submission and sends a
// fresh invitation. The old token stops working immediately.
func (h *AdminHandlers) Resend(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid submission id"})
	}

	approved, err := h.lifecycle.Resend(c.Request().Context(), id)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, ApproveResponse{ApprovedUser: approved, EmailSent: true})
	case errors.Is(err, lifecycle.ErrEmailDelivery):
		return c.JSON(http.StatusOK, ApproveResponse{ApprovedUser: approved, EmailSent: false})
	case errors.Is(err, lifecycle.ErrSubmissionRegistered):
		return c.JSON(http.StatusConflict, map[string]string{"error": "submission already registered"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "submission not found"})
	default:
		slog.Error("resend failed", "error", err, "submission_id", id)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// Cleanup removes an account and resets its submission to pending so the
// signup can be redone from scratch. Unknown emails succeed quietly.
func (h *AdminHandlers) Cleanup(c echo.Context) error {
	email := c.Param("email")
	if email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email is required"})
	}

	if err := h.lifecycle.Cleanup(c.Request().Context(), email); err != nil {
		slog.Error("cleanup failed", "error", err, "email", email)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
