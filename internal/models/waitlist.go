// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models defines the database row types shared by the repository
// and service layers.
package models

import (
	"database/sql"
	"time"
)

// Waitlist submission statuses.
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusRegistered = "registered"
)

// WaitlistSubmission is a signup request awaiting an operator decision.
type WaitlistSubmission struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64          `db:"id" json:"id"`
	FirstName  string         `db:"first_name" json:"first_name"`
	LastName   string         `db:"last_name" json:"last_name"`
	Email      string         `db:"email" json:"email"`
	Status     string         `db:"status" json:"status"`
	AdminNotes sql.NullString `db:"admin_notes" json:"admin_notes,omitempty"`
	ReviewedBy sql.NullString `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt sql.NullTime   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
