// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// User is an account in the managed identity backend.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                     int64           `db:"id" json:"id"`
	UID                    string          `db:"uid" json:"uid"`
	Email                  string          `db:"email" json:"email"`
	FirstName              string          `db:"first_name" json:"first_name"`
	LastName               string          `db:"last_name" json:"last_name"`
	PasswordHash           string          `db:"password_hash" json:"-"`
	EmailVerified          bool            `db:"email_verified" json:"email_verified"`
	IsAdmin                bool            `db:"is_admin" json:"is_admin"`
	ContradictionTolerance sql.NullFloat64 `db:"contradiction_tolerance" json:"contradiction_tolerance,omitempty"`
	BeliefSensitivity      sql.NullString  `db:"belief_sensitivity" json:"belief_sensitivity,omitempty"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
}
