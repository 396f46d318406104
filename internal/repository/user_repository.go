package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/garbage-collector/internal/model"
)

const userColumns = `id, first_name, last_name, id_number, email, password_hash, role, is_activated,
	verification_token_hash, reset_token_hash, reset_token_expires, points, status, created_at, updated_at`

// UserRepo persists the `users` table.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u          model.User
		role       string
		status     string
		verifyHash sql.NullString
		resetHash  sql.NullString
		resetExp   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.IDNumber, &u.Email, &u.PasswordHash, &role,
		&u.IsActivated, &verifyHash, &resetHash, &resetExp, &u.Points, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.Role = model.Role(role)
	u.Status = model.AccountStatus(status)
	if verifyHash.Valid {
		u.VerificationTokenHash = &verifyHash.String
	}
	if resetHash.Valid {
		u.ResetTokenHash = &resetHash.String
	}
	if resetExp.Valid {
		t := resetExp.Time
		u.ResetTokenExpires = &t
	}
	return u, nil
}

// Create inserts an inactive user and returns its ID.  Email and id number
// uniqueness is enforced by the store; a violation yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (first_name, last_name, id_number, email, password_hash, role, is_activated, verification_token_hash)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		u.FirstName, u.LastName, u.IDNumber, strings.ToLower(u.Email), u.PasswordHash, string(u.Role), u.VerificationTokenHash)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email))
}

// GetByVerificationHash fetches the user holding the given verification
// token digest.
func (r *UserRepo) GetByVerificationHash(ctx context.Context, hash string) (model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE verification_token_hash = ? LIMIT 1", hash))
}

// GetByValidResetHash fetches the user holding the given reset token digest
// only while the token has not expired at now.
func (r *UserRepo) GetByValidResetHash(ctx context.Context, hash string, now time.Time) (model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE reset_token_hash = ? AND reset_token_expires > ? LIMIT 1",
		hash, now.UTC()))
}

// Activate flips is_activated and clears the verification token in one
// statement.  It reports false when the user was already active.
func (r *UserRepo) Activate(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_activated = 1, verification_token_hash = NULL WHERE id = ? AND is_activated = 0", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetResetToken stores a reset token digest and its expiry.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, hash string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET reset_token_hash = ?, reset_token_expires = ? WHERE id = ?",
		hash, expires.UTC(), id)
	return err
}

// ResetPassword stores a new password hash and clears the reset token, but
// only if the token is still the current, unexpired one.  It reports false
// when the token was consumed or expired in the meantime.
func (r *UserRepo) ResetPassword(ctx context.Context, id uint64, tokenHash, passwordHash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, reset_token_hash = NULL, reset_token_expires = NULL
		 WHERE id = ? AND reset_token_hash = ? AND reset_token_expires > ?`,
		passwordHash, id, tokenHash, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile overwrites the admin-editable fields of a user.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, firstName, lastName, email string, role model.Role) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET first_name = ?, last_name = ?, email = ?, role = ? WHERE id = ?",
		firstName, lastName, strings.ToLower(email), string(role), id)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return requireAffected(res)
}

// SetStatus enables or disables an account.
func (r *UserRepo) SetStatus(ctx context.Context, id uint64, status model.AccountStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ClearExpiredResetTokens removes reset tokens whose expiry is before now
// and returns how many were cleared.
func (r *UserRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET reset_token_hash = NULL, reset_token_expires = NULL WHERE reset_token_expires IS NOT NULL AND reset_token_expires <= ?",
		now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// requireAffected maps a zero-row update to ErrNotFound.  The DSN sets
// clientFoundRows, so an update that matches but changes nothing still
// counts as one row.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
