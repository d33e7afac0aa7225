// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fischmanb/memduo-gate/internal/onboarding"
	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/services/lifecycle"
	"github.com/labstack/echo/v4"
)

// SetupHandlers implements the invitation setup flow: token validation
// for the form prefill, then one-shot account creation.
type SetupHandlers struct {
	lifecycle *lifecycle.Service
	repo      *repository.Repository
}

// NewSetup creates a new SetupHandlers instance.
func NewSetup(lc *lifecycle.Service, repo *repository.Repository) *SetupHandlers {
	return &SetupHandlers{lifecycle: lc, repo: repo}
}

// ValidateResponse is the prefill payload for a valid setup token.
type ValidateResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}

// Validate checks a setup token without spending it and returns the
// submission details so the setup form can prefill.
func (h *SetupHandlers) Validate(c echo.Context) error {
	approved, err := h.lifecycle.Validate(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		if resp := setupTokenError(c, err); resp != nil {
			return resp
		}
		slog.Error("token validation failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	sub, err := h.repo.GetWaitlistSubmission(c.Request().Context(), approved.WaitlistSubmissionID)
	if err != nil {
		slog.Error("submission lookup failed", "error", err, "approved_user_id", approved.ID)
		return notFoundOr500(c, err)
	}

	return c.JSON(http.StatusOK, ValidateResponse{
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Email:     sub.Email,
		ExpiresAt: approved.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// SetupAnswer is a single questionnaire answer in the consume payload.
type SetupAnswer struct {
	Score  float64 `json:"score"`
	Belief string  `json:"belief,omitempty"`
}

// ConsumeRequest is the request body for spending a setup token.
type ConsumeRequest struct {
	Token    string        `json:"token"`
	Password string        `json:"password"`
	Answers  []SetupAnswer `json:"answers"`
}

// Consume spends the setup token: scores the questionnaire, creates the
// account, and marks the submission registered. Exactly one concurrent
// consume of the same token succeeds.
func (h *SetupHandlers) Consume(c echo.Context) error {
	var req ConsumeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "token is required"})
	}
	// Reject weak passwords before the token is spent; after Consume the
	// invitation is gone.
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
	}

	answers := make([]onboarding.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, onboarding.Answer{
			Score:  a.Score,
			Belief: onboarding.BeliefSensitivity(a.Belief),
		})
	}

	result, err := onboarding.Score(answers)
	if err != nil {
		if errors.Is(err, onboarding.ErrInsufficientAnswers) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "questionnaire answers are required"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid questionnaire answers"})
	}

	// Names come from the approved submission, not the request: the
	// invitation decides who is signing up.
	approved, err := h.lifecycle.Validate(c.Request().Context(), req.Token)
	if err != nil {
		if resp := setupTokenError(c, err); resp != nil {
			return resp
		}
		slog.Error("token validation failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	sub, err := h.repo.GetWaitlistSubmission(c.Request().Context(), approved.WaitlistSubmissionID)
	if err != nil {
		slog.Error("submission lookup failed", "error", err, "approved_user_id", approved.ID)
		return notFoundOr500(c, err)
	}

	tolerance := result.ContradictionTolerance
	profile := identity.Profile{
		FirstName:              sub.FirstName,
		LastName:               sub.LastName,
		ContradictionTolerance: &tolerance,
		BeliefSensitivity:      string(result.BeliefSensitivity),
	}

	ident, err := h.lifecycle.Consume(c.Request().Context(), req.Token, profile, req.Password)
	if err != nil {
		if resp := setupTokenError(c, err); resp != nil {
			return resp
		}
		if resp := identityError(c, err); resp != nil {
			return resp
		}
		slog.Error("setup consume failed", "error", err, "email", sub.Email)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, map[string]any{"user": ident})
}
