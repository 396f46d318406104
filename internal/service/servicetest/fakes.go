// Package servicetest provides in-memory implementations of the service
// store interfaces and a recording mail sender for tests.  All fakes share
// one DB so cross-table operations (redemption, closure credit) stay
// atomic under a single mutex, like the real transactions.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/garbage-collector/internal/mail"
	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/repository"
)

type claimKey struct{ user, reward uint64 }

// DB is the shared in-memory state.
type DB struct {
	mu sync.Mutex

	users    map[uint64]*model.User
	consumed map[string]time.Time
	cards    map[uint64]*model.Card
	statuses []model.CardStatus
	rewards  map[uint64]*model.Reward
	claims   map[claimKey]model.UserReward
	txns     []model.PointTransaction

	nextID uint64

	// Now is used for timestamps and token expiry checks.
	Now func() time.Time
}

// NewDB returns an empty store.
func NewDB() *DB {
	return &DB{
		users:    map[uint64]*model.User{},
		consumed: map[string]time.Time{},
		cards:    map[uint64]*model.Card{},
		rewards:  map[uint64]*model.Reward{},
		claims:   map[claimKey]model.UserReward{},
		Now:      time.Now,
	}
}

func (db *DB) id() uint64 {
	db.nextID++
	return db.nextID
}

func (db *DB) now() time.Time { return db.Now().UTC() }

// Users returns the UserStore view.
func (db *DB) Users() *Users { return &Users{db} }

// Tokens returns the TokenStore view.
func (db *DB) Tokens() *Tokens { return &Tokens{db} }

// Cards returns the CardStore view.
func (db *DB) Cards() *Cards { return &Cards{db} }

// Statuses returns the StatusStore view.
func (db *DB) Statuses() *Statuses { return &Statuses{db} }

// Rewards returns the RewardStore view.
func (db *DB) Rewards() *Rewards { return &Rewards{db} }

// Ledger returns the LedgerStore view.
func (db *DB) Ledger() *Ledger { return &Ledger{db} }

// SeedUser inserts u, filling defaults, and returns it with its ID.
func (db *DB) SeedUser(u model.User) model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u.ID = db.id()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.Status == "" {
		u.Status = model.AccountActive
	}
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = db.now()
	cp := u
	db.users[u.ID] = &cp
	return u
}

// SeedReward inserts a catalog item.
func (db *DB) SeedReward(title string, points int64) model.Reward {
	db.mu.Lock()
	defer db.mu.Unlock()
	rw := model.Reward{ID: db.id(), Title: title, Points: points, CreatedAt: db.now()}
	cp := rw
	db.rewards[rw.ID] = &cp
	return rw
}

// User returns a copy of the stored user.
func (db *DB) User(id uint64) (model.User, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		return model.User{}, false
	}
	return *u, true
}

// Balance returns a user's points.
func (db *DB) Balance(id uint64) int64 {
	u, _ := db.User(id)
	return u.Points
}

// ClaimCount returns how many redemption rows exist for the pair.
func (db *DB) ClaimCount(userID, rewardID uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.claims[claimKey{userID, rewardID}]; ok {
		return 1
	}
	return 0
}

// LedgerSum returns the sum of a user's ledger deltas.
func (db *DB) LedgerSum(userID uint64) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	var sum int64
	for _, t := range db.txns {
		if t.UserID == userID {
			sum += t.Delta
		}
	}
	return sum
}

// Users implements service.UserStore.
type Users struct{ db *DB }

func (s *Users) Create(_ context.Context, u model.User) (uint64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, x := range s.db.users {
		if x.Email == email || x.IDNumber == u.IDNumber {
			return 0, repository.ErrDuplicate
		}
	}
	u.ID = s.db.id()
	u.Email = email
	u.IsActivated = false
	if u.Status == "" {
		u.Status = model.AccountActive
	}
	u.CreatedAt = s.db.now()
	s.db.users[u.ID] = &u
	return u.ID, nil
}

func (s *Users) find(pred func(*model.User) bool) (model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if pred(u) {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	return s.find(func(u *model.User) bool { return u.ID == id })
}

func (s *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u *model.User) bool { return u.Email == email })
}

func (s *Users) GetByVerificationHash(_ context.Context, hash string) (model.User, error) {
	return s.find(func(u *model.User) bool {
		return u.VerificationTokenHash != nil && *u.VerificationTokenHash == hash
	})
}

func (s *Users) GetByValidResetHash(_ context.Context, hash string, now time.Time) (model.User, error) {
	return s.find(func(u *model.User) bool {
		return u.ResetTokenHash != nil && *u.ResetTokenHash == hash &&
			u.ResetTokenExpires != nil && u.ResetTokenExpires.After(now)
	})
}

func (s *Users) Activate(_ context.Context, id uint64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.IsActivated {
		return false, nil
	}
	u.IsActivated = true
	u.VerificationTokenHash = nil
	return true, nil
}

func (s *Users) SetResetToken(_ context.Context, id uint64, hash string, expires time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.ResetTokenHash = &hash
	u.ResetTokenExpires = &expires
	return nil
}

func (s *Users) ResetPassword(_ context.Context, id uint64, tokenHash, passwordHash string, now time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash ||
		u.ResetTokenExpires == nil || !u.ResetTokenExpires.After(now) {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil
	return true, nil
}

func (s *Users) List(_ context.Context) ([]model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]model.User, 0, len(s.db.users))
	for _, u := range s.db.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Users) UpdateProfile(_ context.Context, id uint64, firstName, lastName, email string, role model.Role) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	email = strings.ToLower(email)
	for _, x := range s.db.users {
		if x.ID != id && x.Email == email {
			return repository.ErrDuplicate
		}
	}
	u.FirstName, u.LastName, u.Email, u.Role = firstName, lastName, email, role
	return nil
}

func (s *Users) SetStatus(_ context.Context, id uint64, status model.AccountStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *Users) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, u := range s.db.users {
		if u.ResetTokenExpires != nil && !u.ResetTokenExpires.After(now) {
			u.ResetTokenHash, u.ResetTokenExpires = nil, nil
			n++
		}
	}
	return n, nil
}

// Tokens implements service.TokenStore.
type Tokens struct{ db *DB }

func (s *Tokens) MarkConsumed(_ context.Context, tokenHash, purpose string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := purpose + ":" + tokenHash
	if _, ok := s.db.consumed[key]; !ok {
		s.db.consumed[key] = s.db.now()
	}
	return nil
}

func (s *Tokens) WasConsumed(_ context.Context, tokenHash, purpose string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	_, ok := s.db.consumed[purpose+":"+tokenHash]
	return ok, nil
}

func (s *Tokens) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for k, at := range s.db.consumed {
		if at.Before(cutoff) {
			delete(s.db.consumed, k)
			n++
		}
	}
	return n, nil
}

// Cards implements service.CardStore.
type Cards struct{ db *DB }

func (s *Cards) Create(_ context.Context, c *model.Card) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.cards {
		if x.Slug == c.Slug {
			return repository.ErrDuplicate
		}
	}
	c.ID = s.db.id()
	c.Status = model.CardOpen
	c.CreatedAt = s.db.now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	s.db.cards[c.ID] = &cp
	return nil
}

func (s *Cards) GetBySlug(_ context.Context, slug string) (model.Card, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, c := range s.db.cards {
		if c.Slug == slug {
			return *c, nil
		}
	}
	return model.Card{}, repository.ErrNotFound
}

func (s *Cards) List(_ context.Context, ownerID uint64, all bool) ([]model.Card, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Card{}
	for _, c := range s.db.cards {
		if all || c.UserID == ownerID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Cards) Update(_ context.Context, c model.Card, replaceImage bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.cards[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	img := cur.Image
	if replaceImage {
		img = c.Image
	}
	cur.FullName, cur.PhoneNumber, cur.Email = c.FullName, c.PhoneNumber, c.Email
	cur.City, cur.Street, cur.Title, cur.Description = c.City, c.Street, c.Title, c.Description
	cur.Image = img
	cur.UpdatedAt = s.db.now()
	return nil
}

func (s *Cards) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.cards[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.cards, id)
	kept := s.db.statuses[:0]
	for _, st := range s.db.statuses {
		if st.CardID != id {
			kept = append(kept, st)
		}
	}
	s.db.statuses = kept
	return nil
}

// Statuses implements service.StatusStore.
type Statuses struct{ db *DB }

func (s *Statuses) Append(_ context.Context, cardID uint64, text string) (model.CardStatus, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.cards[cardID]; !ok {
		return model.CardStatus{}, errors.New("foreign key violation")
	}
	st := model.CardStatus{ID: s.db.id(), CardID: cardID, StatusText: text, StatusDate: s.db.now()}
	s.db.statuses = append(s.db.statuses, st)
	return st, nil
}

func (s *Statuses) List(_ context.Context, cardID uint64) ([]model.CardStatus, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.CardStatus{}
	for _, st := range s.db.statuses {
		if st.CardID == cardID {
			out = append(out, st)
		}
	}
	return out, nil
}

// Rewards implements service.RewardStore.
type Rewards struct{ db *DB }

func (s *Rewards) List(_ context.Context) ([]model.Reward, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Reward{}
	for _, rw := range s.db.rewards {
		out = append(out, *rw)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points < out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Rewards) GetByID(_ context.Context, id uint64) (model.Reward, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rw, ok := s.db.rewards[id]
	if !ok {
		return model.Reward{}, repository.ErrNotFound
	}
	return *rw, nil
}

func (s *Rewards) Create(_ context.Context, rw *model.Reward) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rw.ID = s.db.id()
	rw.CreatedAt = s.db.now()
	cp := *rw
	s.db.rewards[rw.ID] = &cp
	return nil
}

func (s *Rewards) Update(_ context.Context, rw model.Reward) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.rewards[rw.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Title, cur.Description, cur.Points = rw.Title, rw.Description, rw.Points
	return nil
}

func (s *Rewards) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.rewards[id]; !ok {
		return repository.ErrNotFound
	}
	for k := range s.db.claims {
		if k.reward == id {
			return repository.ErrConflict
		}
	}
	delete(s.db.rewards, id)
	return nil
}

func (s *Rewards) ClaimedBy(_ context.Context, userID uint64) ([]model.Reward, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var claims []model.UserReward
	for k, ur := range s.db.claims {
		if k.user == userID {
			claims = append(claims, ur)
		}
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ID > claims[j].ID })
	out := []model.Reward{}
	for _, ur := range claims {
		if rw, ok := s.db.rewards[ur.RewardID]; ok {
			out = append(out, *rw)
		}
	}
	return out, nil
}

// Ledger implements service.LedgerStore.
type Ledger struct{ db *DB }

func (s *Ledger) Redeem(_ context.Context, userID, rewardID uint64) (repository.Redemption, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return repository.Redemption{}, repository.ErrNotFound
	}
	if _, ok := s.db.claims[claimKey{userID, rewardID}]; ok {
		return repository.Redemption{}, repository.ErrAlreadyClaimed
	}
	rw, ok := s.db.rewards[rewardID]
	if !ok {
		return repository.Redemption{}, repository.ErrNotFound
	}
	if u.Points < rw.Points {
		return repository.Redemption{}, repository.ErrInsufficientBalance
	}
	u.Points -= rw.Points
	ur := model.UserReward{ID: s.db.id(), UserID: userID, RewardID: rewardID, ClaimedAt: s.db.now()}
	s.db.claims[claimKey{userID, rewardID}] = ur
	s.db.txns = append(s.db.txns, model.PointTransaction{
		ID: s.db.id(), UserID: userID, Delta: -rw.Points, Reason: model.ReasonRewardRedeemed,
		ReferenceID: rewardID, CreatedAt: s.db.now(),
	})
	return repository.Redemption{UserReward: ur, Cost: rw.Points, Balance: u.Points}, nil
}

func (s *Ledger) CloseCard(_ context.Context, cardID uint64, points int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.cards[cardID]
	if !ok {
		return repository.ErrNotFound
	}
	if c.Status != model.CardOpen {
		return repository.ErrAlreadyClosed
	}
	now := s.db.now()
	c.Status = model.CardClosed
	c.ClosedAt = &now
	if u, ok := s.db.users[c.UserID]; ok {
		u.Points += points
	}
	s.db.txns = append(s.db.txns, model.PointTransaction{
		ID: s.db.id(), UserID: c.UserID, Delta: points, Reason: model.ReasonCardClosed,
		ReferenceID: cardID, CreatedAt: now,
	})
	return nil
}

func (s *Ledger) History(_ context.Context, userID uint64) ([]model.PointTransaction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.PointTransaction{}
	for i := len(s.db.txns) - 1; i >= 0; i-- {
		if s.db.txns[i].UserID == userID {
			out = append(out, s.db.txns[i])
		}
	}
	return out, nil
}

// Mailer records sent messages.  Set Err to make every send fail.
type Mailer struct {
	mu   sync.Mutex
	sent []mail.Message
	Err  error
}

func (m *Mailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *Mailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// Last returns the most recent message, if any.
func (m *Mailer) Last() (mail.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mail.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}
