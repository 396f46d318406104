package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/mail"
	"github.com/iliyamo/garbage-collector/internal/metrics"
	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/repository"
	"github.com/iliyamo/garbage-collector/internal/utils"
)

const (
	slugAttempts = 3

	defaultNotifyTimeout = 30 * time.Second
)

// CardService implements the report workflow.  Owners and admins may read
// and edit a card; only admins close cards or append status history.
type CardService struct {
	Cards    CardStore
	Statuses StatusStore
	Ledger   LedgerStore
	Users    UserStore
	Mail     mail.Sender
	Metrics  *metrics.Metrics
	Log      zerolog.Logger

	ClosePoints   int64
	MaxImageBytes int64
	// NotifyTimeout bounds the closure email, which runs detached from the
	// request context.  Zero means defaultNotifyTimeout.
	NotifyTimeout time.Duration
}

// CardInput carries the editable fields of a card.  A nil Image on update
// keeps the stored image.
type CardInput struct {
	FullName    string `json:"fullName" form:"fullName" validate:"required,max=200"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber" validate:"required,max=32"`
	Email       string `json:"email" form:"email" validate:"omitempty,email,max=255"`
	City        string `json:"city" form:"city" validate:"required,max=100"`
	Street      string `json:"street" form:"street" validate:"required,max=200"`
	Title       string `json:"title" form:"title" validate:"required,max=150"`
	Description string `json:"description" form:"description" validate:"required"`
	Image       []byte `json:"-" form:"-"`
}

func (s *CardService) check(in *CardInput) error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.City = strings.TrimSpace(in.City)
	in.Street = strings.TrimSpace(in.Street)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := Validate(in); err != nil {
		return err
	}
	if s.MaxImageBytes > 0 && int64(len(in.Image)) > s.MaxImageBytes {
		return invalid("image must be at most %d bytes", s.MaxImageBytes)
	}
	return nil
}

func (s *CardService) load(ctx context.Context, slug string) (model.Card, error) {
	c, err := s.Cards.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Card{}, notFound("card")
	}
	if err != nil {
		return model.Card{}, translate("load card", err)
	}
	return c, nil
}

// loadManaged loads a card the actor owns or administers.
func (s *CardService) loadManaged(ctx context.Context, actor Actor, slug string) (model.Card, error) {
	c, err := s.load(ctx, slug)
	if err != nil {
		return model.Card{}, err
	}
	if !actor.canManage(c.UserID) {
		return model.Card{}, ErrForbidden
	}
	return c, nil
}

// Create stores a new open card owned by the actor.  The slug is derived
// from the title once and never changes.
func (s *CardService) Create(ctx context.Context, actor Actor, in CardInput) (model.Card, error) {
	if err := s.check(&in); err != nil {
		return model.Card{}, err
	}
	c := model.Card{
		UserID:      actor.ID,
		FullName:    in.FullName,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
		City:        in.City,
		Street:      in.Street,
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		Status:      model.CardOpen,
	}
	var err error
	for i := 0; i < slugAttempts; i++ {
		c.Slug = utils.NewSlug(in.Title)
		if err = s.Cards.Create(ctx, &c); !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		s.Log.Warn().Str("slug", c.Slug).Msg("slug collision, retrying")
	}
	if err != nil {
		return model.Card{}, translate("create card", err)
	}
	s.Log.Info().Uint64("card_id", c.ID).Str("slug", c.Slug).Uint64("user_id", actor.ID).Msg("card created")
	return s.load(ctx, c.Slug)
}

// Get returns a card the actor owns or administers.
func (s *CardService) Get(ctx context.Context, actor Actor, slug string) (model.Card, error) {
	return s.loadManaged(ctx, actor, slug)
}

// List returns the actor's cards, or every card for admins.
func (s *CardService) List(ctx context.Context, actor Actor) ([]model.Card, error) {
	out, err := s.Cards.List(ctx, actor.ID, actor.IsAdmin())
	return out, translate("list cards", err)
}

// Update edits a card.  The slug is left untouched even when the title
// changes.
func (s *CardService) Update(ctx context.Context, actor Actor, slug string, in CardInput) (model.Card, error) {
	c, err := s.loadManaged(ctx, actor, slug)
	if err != nil {
		return model.Card{}, err
	}
	if err := s.check(&in); err != nil {
		return model.Card{}, err
	}
	c.FullName = in.FullName
	c.PhoneNumber = in.PhoneNumber
	c.Email = in.Email
	c.City = in.City
	c.Street = in.Street
	c.Title = in.Title
	c.Description = in.Description
	replaceImage := in.Image != nil
	if replaceImage {
		c.Image = in.Image
	}
	if err := s.Cards.Update(ctx, c, replaceImage); err != nil {
		return model.Card{}, translate("update card", err)
	}
	return s.load(ctx, slug)
}

// Delete removes a card and its status history.
func (s *CardService) Delete(ctx context.Context, actor Actor, slug string) error {
	c, err := s.loadManaged(ctx, actor, slug)
	if err != nil {
		return err
	}
	if err := s.Cards.Delete(ctx, c.ID); err != nil {
		return translate("delete card", err)
	}
	s.Log.Info().Uint64("card_id", c.ID).Uint64("actor_id", actor.ID).Msg("card deleted")
	return nil
}

// Close moves an open card to closed and credits its owner ClosePoints,
// then notifies the reporter.  Closing a closed card fails with
// ErrAlreadyClosed and credits nothing.
func (s *CardService) Close(ctx context.Context, actor Actor, slug string) (model.Card, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Card{}, err
	}
	c, err := s.load(ctx, slug)
	if err != nil {
		return model.Card{}, err
	}
	if err := s.Ledger.CloseCard(ctx, c.ID, s.ClosePoints); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Card{}, notFound("card")
		}
		return model.Card{}, translate("close card", err)
	}
	if s.Metrics != nil {
		s.Metrics.CardsClosed.Inc()
		s.Metrics.PointsCredited.Add(float64(s.ClosePoints))
	}
	s.Log.Info().Uint64("card_id", c.ID).Uint64("owner_id", c.UserID).Int64("points", s.ClosePoints).Msg("card closed")

	closed, err := s.load(ctx, slug)
	if err != nil {
		s.Log.Warn().Err(err).Uint64("card_id", c.ID).Msg("reload after close failed")
		now := time.Now().UTC()
		closed = c
		closed.Status = model.CardClosed
		closed.ClosedAt = &now
	}

	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.notifyClosed(notifyCtx, closed)
	return closed, nil
}

func (s *CardService) notifyClosed(ctx context.Context, c model.Card) {
	to, name := c.Email, c.FullName
	if to == "" {
		owner, err := s.Users.GetByID(ctx, c.UserID)
		if err != nil {
			s.Log.Error().Err(err).Uint64("card_id", c.ID).Msg("closure notice: owner lookup failed")
			return
		}
		to = owner.Email
		if name == "" {
			name = owner.FirstName
		}
	}
	msg, err := mail.CardClosedEmail(to, name, c.Title, s.ClosePoints)
	if err == nil {
		err = s.Mail.Send(ctx, msg)
	}
	if s.Metrics != nil {
		s.Metrics.MailMessages.WithLabelValues("card_closed", metrics.Outcome(err)).Inc()
	}
	if err != nil {
		s.Log.Error().Err(err).Uint64("card_id", c.ID).Msg("closure notice failed")
	}
}

// ListStatuses returns the card's status history in insertion order.  Any
// authenticated caller may read it.
func (s *CardService) ListStatuses(ctx context.Context, slug string) ([]model.CardStatus, error) {
	c, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	out, err := s.Statuses.List(ctx, c.ID)
	return out, translate("list statuses", err)
}

// StatusInput is one status history entry.
type StatusInput struct {
	StatusText string `json:"status_text" validate:"required,max=255"`
}

// AppendStatus adds an entry to the card's history.  The card's own status
// field is not touched.
func (s *CardService) AppendStatus(ctx context.Context, actor Actor, slug string, in StatusInput) (model.CardStatus, error) {
	if err := requireAdmin(actor); err != nil {
		return model.CardStatus{}, err
	}
	in.StatusText = strings.TrimSpace(in.StatusText)
	if err := Validate(in); err != nil {
		return model.CardStatus{}, err
	}
	c, err := s.load(ctx, slug)
	if err != nil {
		return model.CardStatus{}, err
	}
	st, err := s.Statuses.Append(ctx, c.ID, in.StatusText)
	if err != nil {
		return model.CardStatus{}, translate("append status", err)
	}
	return st, nil
}
