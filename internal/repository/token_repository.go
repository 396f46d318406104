package repository

import (
	"context"
	"database/sql"
	"time"
)

// Token purposes stored in consumed_tokens.purpose.
const (
	PurposeVerify = "verify"
	PurposeReset  = "reset"
)

// TokenRepo remembers which single-use tokens have been redeemed (by
// SHA-256 digest only), so an unknown token can be told apart from a
// consumed one.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// MarkConsumed records a redeemed token.  Recording the same token twice is
// a no-op.
func (r *TokenRepo) MarkConsumed(ctx context.Context, tokenHash, purpose string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO consumed_tokens (token_hash, purpose) VALUES (?, ?)",
		tokenHash, purpose)
	return err
}

// WasConsumed reports whether the token digest was redeemed before.
func (r *TokenRepo) WasConsumed(ctx context.Context, tokenHash, purpose string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM consumed_tokens WHERE token_hash = ? AND purpose = ? LIMIT 1",
		tokenHash, purpose).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PruneBefore deletes records consumed before cutoff.
func (r *TokenRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM consumed_tokens WHERE consumed_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
