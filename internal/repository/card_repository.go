package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/garbage-collector/internal/model"
)

const cardColumns = `id, slug, user_id, full_name, phone_number, email, city, street, title, description,
	image, status, closed_at, created_at, updated_at`

// CardRepo persists citizen reports in the `cards` table.
type CardRepo struct{ db *sql.DB }

// NewCardRepo returns a CardRepo bound to db.
func NewCardRepo(db *sql.DB) *CardRepo { return &CardRepo{db: db} }

func scanCard(row rowScanner) (model.Card, error) {
	var (
		c        model.Card
		email    sql.NullString
		status   string
		closedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Slug, &c.UserID, &c.FullName, &c.PhoneNumber, &email, &c.City, &c.Street,
		&c.Title, &c.Description, &c.Image, &status, &closedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Card{}, ErrNotFound
		}
		return model.Card{}, err
	}
	c.Email = email.String
	c.Status = model.CardState(status)
	if closedAt.Valid {
		t := closedAt.Time
		c.ClosedAt = &t
	}
	return c, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create inserts an open card and fills in its generated ID.  A slug
// collision yields ErrDuplicate so the caller can retry with a new suffix.
func (r *CardRepo) Create(ctx context.Context, c *model.Card) error {
	const q = `INSERT INTO cards (slug, user_id, full_name, phone_number, email, city, street, title, description, image, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'open')`
	res, err := r.db.ExecContext(ctx, q, c.Slug, c.UserID, c.FullName, c.PhoneNumber, nullableString(c.Email),
		c.City, c.Street, c.Title, c.Description, c.Image)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.Status = model.CardOpen
	return nil
}

// GetBySlug returns the card with the given slug or ErrNotFound.
func (r *CardRepo) GetBySlug(ctx context.Context, slug string) (model.Card, error) {
	return scanCard(r.db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE slug = ? LIMIT 1", slug))
}

// List returns cards newest first.  When all is false only cards owned by
// ownerID are returned.
func (r *CardRepo) List(ctx context.Context, ownerID uint64, all bool) ([]model.Card, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if all {
		rows, err = r.db.QueryContext(ctx, "SELECT "+cardColumns+" FROM cards ORDER BY created_at DESC, id DESC")
	} else {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+cardColumns+" FROM cards WHERE user_id = ? ORDER BY created_at DESC, id DESC", ownerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update overwrites the editable fields of a card.  Slug, owner and status
// are never touched here.  The image column is only written when
// replaceImage is set.
func (r *CardRepo) Update(ctx context.Context, c model.Card, replaceImage bool) error {
	var (
		res sql.Result
		err error
	)
	if replaceImage {
		res, err = r.db.ExecContext(ctx,
			`UPDATE cards SET full_name = ?, phone_number = ?, email = ?, city = ?, street = ?, title = ?, description = ?, image = ?
			 WHERE id = ?`,
			c.FullName, c.PhoneNumber, nullableString(c.Email), c.City, c.Street, c.Title, c.Description, c.Image, c.ID)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE cards SET full_name = ?, phone_number = ?, email = ?, city = ?, street = ?, title = ?, description = ?
			 WHERE id = ?`,
			c.FullName, c.PhoneNumber, nullableString(c.Email), c.City, c.Street, c.Title, c.Description, c.ID)
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a card; its status history goes with it (ON DELETE CASCADE).
func (r *CardRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
