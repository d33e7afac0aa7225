// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"time"

	"github.com/fischmanb/memduo-gate/internal/models"
	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/fischmanb/memduo-gate/internal/token"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionTTL is how long a managed session token is valid.
	SessionTTL = 7 * 24 * time.Hour

	minPasswordLength = 8
)

// dummyHash is used for constant-time login to prevent timing attacks.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// ResetSender delivers credential-reset notifications.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, toEmail string) error
}

// Managed is the authoritative email+password backend. It owns the account
// record, issues opaque session tokens, and publishes auth-state changes to
// subscribers.
type Managed struct {
	repo   *repository.Repository
	resets ResetSender

	mu      sync.Mutex
	subs    map[int]func(*Identity)
	nextSub int
}

// NewManaged creates the managed backend. resets may be nil; password resets
// then log instead of sending.
func NewManaged(repo *repository.Repository, resets ResetSender) *Managed {
	return &Managed{
		repo:   repo,
		resets: resets,
		subs:   make(map[int]func(*Identity)),
	}
}

// Subscribe registers a listener for auth-state changes. The listener
// receives the identity on sign-in and nil on sign-out. Returns an
// unsubscribe function.
func (m *Managed) Subscribe(fn func(*Identity)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Managed) notify(ident *Identity) {
	m.mu.Lock()
	listeners := make([]func(*Identity), 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
}

// Authenticate verifies the credential and issues a session token.
func (m *Managed) Authenticate(ctx context.Context, cred Credential) (*Identity, string, error) {
	user, err := m.repo.GetUserByEmail(ctx, cred.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(cred.Password))
			slog.Warn("login_failed", "email", cred.Email, "reason", "user_not_found")
			return nil, "", ErrInvalidCredential
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cred.Password)); err != nil {
		slog.Warn("login_failed", "email", cred.Email, "reason", "invalid_password")
		return nil, "", ErrInvalidCredential
	}

	sessionToken, err := token.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}
	expiresAt := time.Now().Add(SessionTTL).UTC()
	if err := m.repo.CreateBackendSession(ctx, token.Hash(sessionToken), user.ID, expiresAt); err != nil {
		return nil, "", fmt.Errorf("failed to store session: %w", err)
	}

	ident := identityFromUser(user)
	slog.Info("login_success", "user_id", user.ID, "email", cred.Email)
	m.notify(ident)

	return ident, sessionToken, nil
}

// Register creates a new managed account.
func (m *Managed) Register(ctx context.Context, profile Profile, cred Credential) (*Identity, error) {
	if _, err := mail.ParseAddress(cred.Email); err != nil {
		return nil, ErrInvalidCredential
	}
	if len(cred.Password) < minPasswordLength {
		return nil, ErrInvalidCredential
	}

	_, err := m.repo.GetUserByEmail(ctx, cred.Email)
	if err == nil {
		return nil, ErrAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cred.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		UID:          uuid.NewString(),
		Email:        cred.Email,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		PasswordHash: string(passwordHash),
	}
	if profile.ContradictionTolerance != nil {
		user.ContradictionTolerance.Float64 = *profile.ContradictionTolerance
		user.ContradictionTolerance.Valid = true
	}
	if profile.BeliefSensitivity != "" {
		user.BeliefSensitivity.String = profile.BeliefSensitivity
		user.BeliefSensitivity.Valid = true
	}

	if err := m.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", cred.Email)

	return identityFromUser(user), nil
}

// CurrentIdentity resolves a session token against the session store.
func (m *Managed) CurrentIdentity(ctx context.Context, sessionToken string) (*Identity, error) {
	if sessionToken == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := m.repo.GetBackendSession(ctx, token.Hash(sessionToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		_ = m.repo.DeleteBackendSession(ctx, sess.TokenHash)
		return nil, ErrUnauthenticated
	}

	user, err := m.repo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return identityFromUser(user), nil
}

// ResetCredential sends a password-reset notification for the account.
// Returns ErrNotFound for unknown emails so internal callers can log
// detail; outer surfaces mask this to avoid account enumeration.
func (m *Managed) ResetCredential(ctx context.Context, email string) error {
	if _, err := m.repo.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if m.resets == nil {
		slog.Info("password_reset_skipped", "email", email, "reason", "no_sender")
		return nil
	}
	if err := m.resets.SendPasswordReset(ctx, email); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	slog.Info("password_reset_sent", "email", email)
	return nil
}

// SignOut destroys every session of the token's owner and notifies
// subscribers. Unknown tokens are a no-op: sign-out is idempotent.
func (m *Managed) SignOut(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}

	sess, err := m.repo.GetBackendSession(ctx, token.Hash(sessionToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	if err := m.repo.DeleteUserBackendSessions(ctx, sess.UserID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	slog.Info("signout", "user_id", sess.UserID)
	m.notify(nil)
	return nil
}

// IdentityByEmail looks up an account without authenticating it.
func (m *Managed) IdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	user, err := m.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return identityFromUser(user), nil
}

// DeleteIdentity removes a managed account by email. Best-effort support for
// the lifecycle's cleanup path.
func (m *Managed) DeleteIdentity(ctx context.Context, email string) error {
	return m.repo.DeleteUser(ctx, email)
}

func identityFromUser(user *models.User) *Identity {
	return &Identity{
		UID:           user.UID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		EmailVerified: user.EmailVerified,
		IsAdmin:       user.IsAdmin,
	}
}
