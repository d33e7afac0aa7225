// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// MagicLink is the audit record behind a setup token. Only the SHA256 hash
// of the token is stored here; the raw token lives solely in the
// approved_users row and the invitation email.
type MagicLink struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64        `db:"id" json:"id"`
	ApprovedUserID int64        `db:"approved_user_id" json:"approved_user_id"`
	Email          string       `db:"email" json:"email"`
	TokenHash      string       `db:"token_hash" json:"-"`
	Used           bool         `db:"used" json:"used"`
	UsedAt         sql.NullTime `db:"used_at" json:"used_at,omitempty"`
	ExpiresAt      time.Time    `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
