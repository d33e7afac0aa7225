// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ApprovedUser holds the one-time setup credential minted when an operator
// approves a waitlist submission. AccountCreated flips false→true exactly
// once, atomically with identity creation.
type ApprovedUser struct { //nolint:govet // fieldalignment: readability over optimization
	ID                   int64     `db:"id" json:"id"`
	WaitlistSubmissionID int64     `db:"waitlist_submission_id" json:"waitlist_submission_id"`
	SetupToken           string    `db:"setup_token" json:"-"`
	ExpiresAt            time.Time `db:"expires_at" json:"expires_at"`
	AccountCreated       bool      `db:"account_created" json:"account_created"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the setup token is past its expiry at the given time.
func (a *ApprovedUser) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
