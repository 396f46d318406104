package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/garbage-collector/internal/model"
)

// RewardRepo manages the rewards catalog.
type RewardRepo struct{ db *sql.DB }

func NewRewardRepo(db *sql.DB) *RewardRepo { return &RewardRepo{db: db} }

func scanRewards(rows *sql.Rows) ([]model.Reward, error) {
	defer rows.Close()
	out := []model.Reward{}
	for rows.Next() {
		var (
			rw   model.Reward
			desc sql.NullString
		)
		if err := rows.Scan(&rw.ID, &rw.Title, &desc, &rw.Points, &rw.CreatedAt); err != nil {
			return nil, err
		}
		rw.Description = desc.String
		out = append(out, rw)
	}
	return out, rows.Err()
}

// List returns the catalog ordered by cost, cheapest first.
func (r *RewardRepo) List(ctx context.Context) ([]model.Reward, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, description, points, created_at FROM rewards ORDER BY points ASC, id ASC")
	if err != nil {
		return nil, err
	}
	return scanRewards(rows)
}

// GetByID returns a reward or ErrNotFound.
func (r *RewardRepo) GetByID(ctx context.Context, id uint64) (model.Reward, error) {
	var (
		rw   model.Reward
		desc sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, description, points, created_at FROM rewards WHERE id = ?", id).
		Scan(&rw.ID, &rw.Title, &desc, &rw.Points, &rw.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reward{}, ErrNotFound
	}
	if err != nil {
		return model.Reward{}, err
	}
	rw.Description = desc.String
	return rw, nil
}

// Create inserts a reward and sets its ID.
func (r *RewardRepo) Create(ctx context.Context, rw *model.Reward) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO rewards (title, description, points) VALUES (?, ?, ?)",
		rw.Title, nullableString(rw.Description), rw.Points)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rw.ID = uint64(id)
	return nil
}

// Update overwrites title, description and cost.
func (r *RewardRepo) Update(ctx context.Context, rw model.Reward) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE rewards SET title = ?, description = ?, points = ? WHERE id = ?",
		rw.Title, nullableString(rw.Description), rw.Points, rw.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a reward.  Rewards that were already redeemed are
// protected by a RESTRICT foreign key and yield ErrConflict.
func (r *RewardRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rewards WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	return requireAffected(res)
}

// ClaimedBy returns the rewards a user has redeemed, most recent first.
func (r *RewardRepo) ClaimedBy(ctx context.Context, userID uint64) ([]model.Reward, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rw.id, rw.title, rw.description, rw.points, rw.created_at
		 FROM user_rewards ur
		 JOIN rewards rw ON rw.id = ur.reward_id
		 WHERE ur.user_id = ?
		 ORDER BY ur.claimed_at DESC, ur.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanRewards(rows)
}
