package model

import (
	"encoding/base64"
	"time"
)

// CardState is the lifecycle flag of a report.  The only transition is
// open -> closed.
type CardState string

const (
	CardOpen   CardState = "open"
	CardClosed CardState = "closed"
)

// Card mirrors the `cards` table.  Slug is assigned once at creation and
// never recomputed.
type Card struct {
	ID          uint64
	Slug        string
	UserID      uint64
	FullName    string
	PhoneNumber string
	Email       string
	City        string
	Street      string
	Title       string
	Description string
	Image       []byte
	Status      CardState
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CardView is the JSON shape of a card.  The image blob is transcoded to
// base64 only here, at the API boundary.
type CardView struct {
	ID          uint64     `json:"id"`
	Slug        string     `json:"slug"`
	UserID      uint64     `json:"user_id"`
	FullName    string     `json:"fullName"`
	PhoneNumber string     `json:"phoneNumber"`
	Email       string     `json:"email,omitempty"`
	City        string     `json:"city"`
	Street      string     `json:"street"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Image       string     `json:"image,omitempty"`
	Status      CardState  `json:"status"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// View returns the JSON projection of c.
func (c Card) View() CardView {
	v := CardView{
		ID:          c.ID,
		Slug:        c.Slug,
		UserID:      c.UserID,
		FullName:    c.FullName,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		City:        c.City,
		Street:      c.Street,
		Title:       c.Title,
		Description: c.Description,
		Status:      c.Status,
		ClosedAt:    c.ClosedAt,
		CreatedAt:   c.CreatedAt,
	}
	if len(c.Image) > 0 {
		v.Image = base64.StdEncoding.EncodeToString(c.Image)
	}
	return v
}

// CardStatus is one append-only entry of a card's status history.  It is
// an audit trail, independent from Card.Status; the two may diverge.
type CardStatus struct {
	ID         uint64    `json:"id"`
	CardID     uint64    `json:"card_id"`
	StatusText string    `json:"status_text"`
	StatusDate time.Time `json:"status_date"`
}
