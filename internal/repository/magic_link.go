// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/fischmanb/memduo-gate/internal/models"
)

// ReplaceMagicLink deletes any prior links for the approved user and inserts
// a fresh unused one. Keeps the invariant of at most one unused link per
// approved user.
func (r *Repository) ReplaceMagicLink(ctx context.Context, approvedUserID int64, email, tokenHash string, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM magic_links WHERE approved_user_id = ?`, approvedUserID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO magic_links (approved_user_id, email, token_hash, used, expires_at) VALUES (?, ?, ?, 0, ?)`,
		approvedUserID, email, tokenHash, expiresAt)
	return err
}

// GetMagicLinkByHash retrieves a magic link by token hash.
func (r *Repository) GetMagicLinkByHash(ctx context.Context, tokenHash string) (*models.MagicLink, error) {
	var link models.MagicLink
	err := r.db.GetContext(ctx, &link, `SELECT * FROM magic_links WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &link, nil
}

// MarkMagicLinkUsed stamps the link for an approved user as used.
func (r *Repository) MarkMagicLinkUsed(ctx context.Context, approvedUserID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE magic_links SET used = 1, used_at = ? WHERE approved_user_id = ? AND used = 0`,
		time.Now().UTC(), approvedUserID)
	return err
}

// DeleteMagicLinks deletes all links for an approved user.
func (r *Repository) DeleteMagicLinks(ctx context.Context, approvedUserID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM magic_links WHERE approved_user_id = ?`, approvedUserID)
	return err
}

// DeleteExpiredMagicLinks sweeps links past their expiry.
func (r *Repository) DeleteExpiredMagicLinks(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM magic_links WHERE expires_at < ?`, time.Now().UTC())
	return err
}
