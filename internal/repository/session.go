// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/fischmanb/memduo-gate/internal/models"
)

// CreateBackendSession persists a hashed session token for a user.
func (r *Repository) CreateBackendSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at) VALUES (?, ?, ?)`,
		tokenHash, userID, expiresAt)
	return err
}

// GetBackendSession retrieves a session by token hash.
func (r *Repository) GetBackendSession(ctx context.Context, tokenHash string) (*models.BackendSession, error) {
	var sess models.BackendSession
	err := r.db.GetContext(ctx, &sess, `SELECT * FROM sessions WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &sess, nil
}

// DeleteBackendSession deletes a session by token hash.
func (r *Repository) DeleteBackendSession(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	return err
}

// DeleteUserBackendSessions deletes every session for a user. Backs the
// managed backend's global sign-out.
func (r *Repository) DeleteUserBackendSessions(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredBackendSessions sweeps sessions past their expiry.
func (r *Repository) DeleteExpiredBackendSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now().UTC())
	return err
}
