package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/garbage-collector/internal/model"
)

// CardStatusRepo appends to and reads the card_statuses audit trail.  Rows
// are never updated or deleted except by cascade with their card.
type CardStatusRepo struct{ db *sql.DB }

func NewCardStatusRepo(db *sql.DB) *CardStatusRepo { return &CardStatusRepo{db: db} }

// Append inserts a status entry and returns it as stored.
func (r *CardStatusRepo) Append(ctx context.Context, cardID uint64, text string) (model.CardStatus, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO card_statuses (card_id, status_text) VALUES (?, ?)", cardID, text)
	if err != nil {
		return model.CardStatus{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.CardStatus{}, err
	}
	var s model.CardStatus
	err = r.db.QueryRowContext(ctx,
		"SELECT id, card_id, status_text, status_date FROM card_statuses WHERE id = ?", id).
		Scan(&s.ID, &s.CardID, &s.StatusText, &s.StatusDate)
	return s, err
}

// List returns a card's history in insertion order.
func (r *CardStatusRepo) List(ctx context.Context, cardID uint64) ([]model.CardStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, card_id, status_text, status_date FROM card_statuses WHERE card_id = ? ORDER BY id ASC", cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CardStatus{}
	for rows.Next() {
		var s model.CardStatus
		if err := rows.Scan(&s.ID, &s.CardID, &s.StatusText, &s.StatusDate); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
