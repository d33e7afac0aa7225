// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package lifecycle drives the waitlist→approved→registered state machine
// and its one-time setup tokens.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fischmanb/memduo-gate/internal/models"
	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/token"
)

const (
	// SetupTokenTTL is how long a minted setup token stays valid.
	SetupTokenTTL = 7 * 24 * time.Hour

	setupTokenTTLDays = 7
)

var (
	ErrTokenInvalid    = errors.New("setup token invalid")
	ErrTokenExpired    = errors.New("setup token expired")
	ErrAlreadyConsumed = errors.New("setup token already consumed")

	// ErrEmailDelivery marks a completed approval whose invitation email
	// could not be sent. The token stays valid and resendable.
	ErrEmailDelivery = errors.New("invitation email delivery failed")

	// ErrSubmissionRegistered guards state transitions on submissions that
	// already completed registration.
	ErrSubmissionRegistered = errors.New("submission already registered")
)

// EmailSender delivers invitation mail. Delivery failures never roll back
// the approval itself.
type EmailSender interface {
	SendInvitation(ctx context.Context, toEmail, firstName, setupURL string, ttlDays int) error
}

// ManagedBackend is the authoritative identity backend used during consume.
type ManagedBackend interface {
	Register(ctx context.Context, profile identity.Profile, cred identity.Credential) (*identity.Identity, error)
	IdentityByEmail(ctx context.Context, email string) (*identity.Identity, error)
	DeleteIdentity(ctx context.Context, email string) error
}

// BearerBackend is the secondary, best-effort identity backend.
type BearerBackend interface {
	Register(ctx context.Context, profile identity.Profile, cred identity.Credential) (*identity.Identity, error)
}

// Service orchestrates invitation state transitions.
type Service struct {
	repo    *repository.Repository
	managed ManagedBackend
	bearer  BearerBackend
	emails  EmailSender
	baseURL string
}

// NewService creates the lifecycle service. bearer and emails may be nil;
// the corresponding steps are then skipped with a log line.
func NewService(repo *repository.Repository, managed ManagedBackend, bearer BearerBackend, emails EmailSender, baseURL string) *Service {
	return &Service{
		repo:    repo,
		managed: managed,
		bearer:  bearer,
		emails:  emails,
		baseURL: baseURL,
	}
}

// Approve moves a submission to approved and mints a fresh setup token.
// Approving an already-approved submission rotates the token and resets the
// expiry instead of erroring. When the invitation email cannot be sent the
// returned error wraps ErrEmailDelivery and the approval still stands.
func (s *Service) Approve(ctx context.Context, submissionID int64, reviewedBy, notes string) (*models.ApprovedUser, error) {
	sub, err := s.repo.GetWaitlistSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.StatusRegistered {
		return nil, ErrSubmissionRegistered
	}

	approved, err := s.mintToken(ctx, sub)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetWaitlistStatus(ctx, sub.ID, models.StatusApproved, notes, reviewedBy); err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}

	slog.Info("submission_approved", "submission_id", sub.ID, "email", sub.Email, "reviewed_by", reviewedBy)

	return approved, s.sendInvitation(ctx, sub, approved)
}

// Resend rotates the setup token of an approved submission and sends a new
// invitation. The review metadata stamped at approval time is untouched.
func (s *Service) Resend(ctx context.Context, submissionID int64) (*models.ApprovedUser, error) {
	sub, err := s.repo.GetWaitlistSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.StatusRegistered {
		return nil, ErrSubmissionRegistered
	}
	if sub.Status != models.StatusApproved {
		return nil, fmt.Errorf("submission %d is %s, not approved", sub.ID, sub.Status)
	}

	approved, err := s.mintToken(ctx, sub)
	if err != nil {
		return nil, err
	}

	slog.Info("invitation_resent", "submission_id", sub.ID, "email", sub.Email)

	return approved, s.sendInvitation(ctx, sub, approved)
}

// mintToken generates a token, rotates the approved-user row, and replaces
// the magic-link audit record with a fresh one holding only the hash.
func (s *Service) mintToken(ctx context.Context, sub *models.WaitlistSubmission) (*models.ApprovedUser, error) {
	raw, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate setup token: %w", err)
	}
	expiresAt := time.Now().Add(SetupTokenTTL).UTC()

	approved, err := s.repo.UpsertApprovedUser(ctx, sub.ID, raw, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store approved user: %w", err)
	}

	if err := s.repo.ReplaceMagicLink(ctx, approved.ID, sub.Email, token.Hash(raw), expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store magic link: %w", err)
	}

	return approved, nil
}

func (s *Service) sendInvitation(ctx context.Context, sub *models.WaitlistSubmission, approved *models.ApprovedUser) error {
	if s.emails == nil {
		slog.Info("invitation_email_skipped", "submission_id", sub.ID, "reason", "no_sender")
		return nil
	}

	setupURL := fmt.Sprintf("%s/setup?token=%s", s.baseURL, approved.SetupToken)
	if err := s.emails.SendInvitation(ctx, sub.Email, sub.FirstName, setupURL, setupTokenTTLDays); err != nil {
		slog.Error("invitation_email_failed", "submission_id", sub.ID, "email", sub.Email, "error", err)
		return fmt.Errorf("%w: %w", ErrEmailDelivery, err)
	}
	return nil
}

// Validate checks a raw setup token without consuming it. Expiry is checked
// before the consumed flag so an expired token always reports as expired.
func (s *Service) Validate(ctx context.Context, rawToken string) (*models.ApprovedUser, error) {
	if rawToken == "" {
		return nil, ErrTokenInvalid
	}

	approved, err := s.repo.GetApprovedUserByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if approved.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}
	if approved.AccountCreated {
		return nil, ErrAlreadyConsumed
	}

	return approved, nil
}

// Consume spends a setup token and creates the account. The flag flip is a
// single conditional update, so exactly one of any number of concurrent
// consumptions succeeds. The managed backend is authoritative; the bearer
// identity is created best-effort and may be lazily derived on first login.
func (s *Service) Consume(ctx context.Context, rawToken string, profile identity.Profile, password string) (*identity.Identity, error) {
	approved, err := s.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	// The irreversible "this invitation is spent" signal. A racing request
	// that lost the update sees AlreadyConsumed and creates nothing.
	if err := s.repo.ConsumeApprovedUser(ctx, approved.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyConsumed
		}
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	sub, err := s.repo.GetWaitlistSubmission(ctx, approved.WaitlistSubmissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	cred := identity.Credential{Email: sub.Email, Password: password}

	ident, err := s.managed.Register(ctx, profile, cred)
	if err != nil {
		if !errors.Is(err, identity.ErrAlreadyExists) {
			// The token is spent; recovery goes through operator cleanup,
			// not through re-consuming.
			slog.Error("managed_identity_failed", "submission_id", sub.ID, "email", sub.Email, "error", err)
			return nil, fmt.Errorf("failed to create managed identity: %w", err)
		}
		slog.Warn("managed_identity_exists", "submission_id", sub.ID, "email", sub.Email)
		ident, err = s.managed.IdentityByEmail(ctx, sub.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing identity: %w", err)
		}
	}

	if s.bearer != nil {
		if _, err := s.bearer.Register(ctx, profile, cred); err != nil {
			// Best-effort: the managed identity is authoritative.
			slog.Warn("bearer_identity_failed", "submission_id", sub.ID, "email", sub.Email, "error", err)
		}
	}

	if err := s.repo.MarkWaitlistRegistered(ctx, sub.ID); err != nil {
		slog.Warn("submission_status_update_failed", "submission_id", sub.ID, "error", err)
	}
	if err := s.repo.MarkMagicLinkUsed(ctx, approved.ID); err != nil {
		slog.Warn("magic_link_update_failed", "approved_user_id", approved.ID, "error", err)
	}

	slog.Info("registration_complete", "submission_id", sub.ID, "email", sub.Email, "uid", ident.UID)

	return ident, nil
}

// Reject marks a submission rejected. No token side effects.
func (s *Service) Reject(ctx context.Context, submissionID int64, reviewedBy, notes string) error {
	sub, err := s.repo.GetWaitlistSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.Status == models.StatusRegistered {
		return ErrSubmissionRegistered
	}

	if err := s.repo.SetWaitlistStatus(ctx, sub.ID, models.StatusRejected, notes, reviewedBy); err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	slog.Info("submission_rejected", "submission_id", sub.ID, "email", sub.Email, "reviewed_by", reviewedBy)
	return nil
}

// Cleanup unwinds a broken registration attempt for the email: setup rows
// are deleted, the managed identity is removed best-effort, and the
// submission returns to pending with cleared review metadata.
func (s *Service) Cleanup(ctx context.Context, email string) error {
	sub, err := s.repo.GetWaitlistSubmissionByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("cleanup_skipped", "email", email, "reason", "no_submission")
			return nil
		}
		return fmt.Errorf("failed to load submission: %w", err)
	}

	if err := s.repo.DeleteApprovedUser(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to delete setup rows: %w", err)
	}

	// Identity deletion is advisory: log and continue on failure.
	if err := s.managed.DeleteIdentity(ctx, email); err != nil {
		slog.Warn("cleanup_identity_failed", "email", email, "error", err)
	}

	if err := s.repo.ResetWaitlistSubmission(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to reset submission: %w", err)
	}

	slog.Info("registration_cleaned_up", "submission_id", sub.ID, "email", email)
	return nil
}
