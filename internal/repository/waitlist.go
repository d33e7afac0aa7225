// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/fischmanb/memduo-gate/internal/models"
)

// CreateWaitlistSubmission inserts a new pending submission.
func (r *Repository) CreateWaitlistSubmission(ctx context.Context, firstName, lastName, email string) (*models.WaitlistSubmission, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO waitlist_submissions (first_name, last_name, email, status) VALUES (?, ?, ?, ?)`,
		firstName, lastName, email, models.StatusPending)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetWaitlistSubmission(ctx, id)
}

// GetWaitlistSubmission retrieves a submission by ID.
func (r *Repository) GetWaitlistSubmission(ctx context.Context, id int64) (*models.WaitlistSubmission, error) {
	var sub models.WaitlistSubmission
	err := r.db.GetContext(ctx, &sub, `SELECT * FROM waitlist_submissions WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &sub, nil
}

// GetWaitlistSubmissionByEmail retrieves a submission by email address.
func (r *Repository) GetWaitlistSubmissionByEmail(ctx context.Context, email string) (*models.WaitlistSubmission, error) {
	var sub models.WaitlistSubmission
	err := r.db.GetContext(ctx, &sub, `SELECT * FROM waitlist_submissions WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &sub, nil
}

// ListWaitlistSubmissions returns submissions ordered by creation date
// (newest first), optionally filtered by status.
func (r *Repository) ListWaitlistSubmissions(ctx context.Context, status string) ([]models.WaitlistSubmission, error) {
	var subs []models.WaitlistSubmission
	var err error
	if status == "" {
		err = r.db.SelectContext(ctx, &subs, `SELECT * FROM waitlist_submissions ORDER BY created_at DESC`)
	} else {
		err = r.db.SelectContext(ctx, &subs, `SELECT * FROM waitlist_submissions WHERE status = ? ORDER BY created_at DESC`, status)
	}
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// SetWaitlistStatus updates a submission's status and review metadata.
func (r *Repository) SetWaitlistStatus(ctx context.Context, id int64, status, notes, reviewedBy string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE waitlist_submissions SET status = ?, admin_notes = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?`,
		status, notes, reviewedBy, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkWaitlistRegistered flips a submission to registered without touching
// the review metadata stamped at approval time.
func (r *Repository) MarkWaitlistRegistered(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE waitlist_submissions SET status = ? WHERE id = ?`, models.StatusRegistered, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ResetWaitlistSubmission returns a submission to pending and clears its
// review metadata. Used by the cleanup path to unwind a broken registration.
func (r *Repository) ResetWaitlistSubmission(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE waitlist_submissions SET status = ?, admin_notes = NULL, reviewed_by = NULL, reviewed_at = NULL WHERE id = ?`,
		models.StatusPending, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
