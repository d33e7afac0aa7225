// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/fischmanb/memduo-gate/internal/models"
)

// UpsertApprovedUser creates the approved-user row for a submission, or
// rotates the token and expiry on the existing row. Approving twice is
// idempotent in effect: one row per submission, last token wins.
func (r *Repository) UpsertApprovedUser(ctx context.Context, submissionID int64, setupToken string, expiresAt time.Time) (*models.ApprovedUser, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO approved_users (waitlist_submission_id, setup_token, expires_at, account_created)
		 VALUES (?, ?, ?, 0)
		 ON CONFLICT (waitlist_submission_id)
		 DO UPDATE SET setup_token = excluded.setup_token, expires_at = excluded.expires_at, account_created = 0`,
		submissionID, setupToken, expiresAt)
	if err != nil {
		return nil, err
	}
	return r.GetApprovedUserBySubmission(ctx, submissionID)
}

// GetApprovedUser retrieves an approved user by ID.
func (r *Repository) GetApprovedUser(ctx context.Context, id int64) (*models.ApprovedUser, error) {
	var au models.ApprovedUser
	err := r.db.GetContext(ctx, &au, `SELECT * FROM approved_users WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &au, nil
}

// GetApprovedUserByToken retrieves an approved user by raw setup token.
// Superseded tokens fail this lookup because the row's setup_token column
// has moved on.
func (r *Repository) GetApprovedUserByToken(ctx context.Context, setupToken string) (*models.ApprovedUser, error) {
	var au models.ApprovedUser
	err := r.db.GetContext(ctx, &au, `SELECT * FROM approved_users WHERE setup_token = ?`, setupToken)
	if err != nil {
		return nil, wrapError(err)
	}
	return &au, nil
}

// GetApprovedUserBySubmission retrieves the approved user for a submission.
func (r *Repository) GetApprovedUserBySubmission(ctx context.Context, submissionID int64) (*models.ApprovedUser, error) {
	var au models.ApprovedUser
	err := r.db.GetContext(ctx, &au, `SELECT * FROM approved_users WHERE waitlist_submission_id = ?`, submissionID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &au, nil
}

// ConsumeApprovedUser flips account_created false→true as a single
// conditional update. Returns ErrNotFound when the flag was already set,
// so concurrent consumptions of the same token cannot both succeed.
func (r *Repository) ConsumeApprovedUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE approved_users SET account_created = 1 WHERE id = ? AND account_created = 0`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteApprovedUser deletes the approved-user row for a submission.
// Magic links cascade via the foreign key.
func (r *Repository) DeleteApprovedUser(ctx context.Context, submissionID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM approved_users WHERE waitlist_submission_id = ?`, submissionID)
	return err
}
