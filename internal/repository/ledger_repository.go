package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/garbage-collector/internal/model"
)

// LedgerRepo owns every statement that moves points.  Each balance change
// and its point_transactions row commit together, so users.points always
// equals the sum of the user's ledger deltas.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo returns a LedgerRepo bound to db.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// Redemption is the outcome of a successful Redeem.
type Redemption struct {
	UserReward model.UserReward
	Cost       int64
	Balance    int64
}

// Redeem spends a user's points on a reward inside a single transaction.
// The user row is locked first, so concurrent redemptions by the same user
// serialise on it; UNIQUE(user_id, reward_id) backs up the claim check.
// Errors: ErrNotFound (user or reward), ErrAlreadyClaimed,
// ErrInsufficientBalance.
func (r *LedgerRepo) Redeem(ctx context.Context, userID, rewardID uint64) (Redemption, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Redemption{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var balance int64
	if err := tx.QueryRowContext(ctx, "SELECT points FROM users WHERE id = ? FOR UPDATE", userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Redemption{}, ErrNotFound
		}
		return Redemption{}, err
	}

	var one int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM user_rewards WHERE user_id = ? AND reward_id = ? LIMIT 1", userID, rewardID).Scan(&one)
	switch {
	case err == nil:
		return Redemption{}, ErrAlreadyClaimed
	case !errors.Is(err, sql.ErrNoRows):
		return Redemption{}, err
	}

	var cost int64
	if err := tx.QueryRowContext(ctx, "SELECT points FROM rewards WHERE id = ?", rewardID).Scan(&cost); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Redemption{}, ErrNotFound
		}
		return Redemption{}, err
	}
	if balance < cost {
		return Redemption{}, ErrInsufficientBalance
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET points = points - ? WHERE id = ? AND points >= ?", cost, userID, cost)
	if err != nil {
		return Redemption{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Redemption{}, err
	} else if n == 0 {
		return Redemption{}, ErrInsufficientBalance
	}

	res, err = tx.ExecContext(ctx, "INSERT INTO user_rewards (user_id, reward_id) VALUES (?, ?)", userID, rewardID)
	if err != nil {
		if isDuplicate(err) {
			return Redemption{}, ErrAlreadyClaimed
		}
		return Redemption{}, err
	}
	urID, err := res.LastInsertId()
	if err != nil {
		return Redemption{}, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO point_transactions (user_id, delta, reason, reference_id) VALUES (?, ?, ?, ?)",
		userID, -cost, string(model.ReasonRewardRedeemed), rewardID); err != nil {
		return Redemption{}, err
	}

	if err := tx.Commit(); err != nil {
		return Redemption{}, err
	}
	committed = true
	return Redemption{
		UserReward: model.UserReward{ID: uint64(urID), UserID: userID, RewardID: rewardID, ClaimedAt: time.Now().UTC()},
		Cost:       cost,
		Balance:    balance - cost,
	}, nil
}

// CloseCard flips an open card to closed and credits its owner in one
// transaction.  A card that is not open yields ErrAlreadyClosed and no
// credit; a missing card yields ErrNotFound.
func (r *LedgerRepo) CloseCard(ctx context.Context, cardID uint64, points int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var ownerID uint64
	var status string
	if err := tx.QueryRowContext(ctx, "SELECT user_id, status FROM cards WHERE id = ? FOR UPDATE", cardID).Scan(&ownerID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE cards SET status = 'closed', closed_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'open'", cardID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrAlreadyClosed
	}

	if _, err := tx.ExecContext(ctx, "UPDATE users SET points = points + ? WHERE id = ?", points, ownerID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO point_transactions (user_id, delta, reason, reference_id) VALUES (?, ?, ?, ?)",
		ownerID, points, string(model.ReasonCardClosed), cardID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// History lists a user's ledger entries, newest first.
func (r *LedgerRepo) History(ctx context.Context, userID uint64) ([]model.PointTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, delta, reason, reference_id, created_at
		 FROM point_transactions WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PointTransaction{}
	for rows.Next() {
		var (
			t      model.PointTransaction
			reason string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Delta, &reason, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Reason = model.LedgerReason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}
