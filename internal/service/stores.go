// Package service implements the application's use cases on top of the
// repository interfaces below.  Every method takes a context and returns
// one of the sentinel errors in errors.go (possibly wrapped) on failure.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/repository"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, u model.User) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByVerificationHash(ctx context.Context, hash string) (model.User, error)
	GetByValidResetHash(ctx context.Context, hash string, now time.Time) (model.User, error)
	Activate(ctx context.Context, id uint64) (bool, error)
	SetResetToken(ctx context.Context, id uint64, hash string, expires time.Time) error
	ResetPassword(ctx context.Context, id uint64, tokenHash, passwordHash string, now time.Time) (bool, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, id uint64, firstName, lastName, email string, role model.Role) error
	SetStatus(ctx context.Context, id uint64, status model.AccountStatus) error
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenStore is implemented by repository.TokenRepo.
type TokenStore interface {
	MarkConsumed(ctx context.Context, tokenHash, purpose string) error
	WasConsumed(ctx context.Context, tokenHash, purpose string) (bool, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CardStore is implemented by repository.CardRepo.
type CardStore interface {
	Create(ctx context.Context, c *model.Card) error
	GetBySlug(ctx context.Context, slug string) (model.Card, error)
	List(ctx context.Context, ownerID uint64, all bool) ([]model.Card, error)
	Update(ctx context.Context, c model.Card, replaceImage bool) error
	Delete(ctx context.Context, id uint64) error
}

// StatusStore is implemented by repository.CardStatusRepo.
type StatusStore interface {
	Append(ctx context.Context, cardID uint64, text string) (model.CardStatus, error)
	List(ctx context.Context, cardID uint64) ([]model.CardStatus, error)
}

// RewardStore is implemented by repository.RewardRepo.
type RewardStore interface {
	List(ctx context.Context) ([]model.Reward, error)
	GetByID(ctx context.Context, id uint64) (model.Reward, error)
	Create(ctx context.Context, rw *model.Reward) error
	Update(ctx context.Context, rw model.Reward) error
	Delete(ctx context.Context, id uint64) error
	ClaimedBy(ctx context.Context, userID uint64) ([]model.Reward, error)
}

// LedgerStore is implemented by repository.LedgerRepo.  Both mutations are
// atomic: they either apply the balance change with its ledger row or
// nothing.
type LedgerStore interface {
	Redeem(ctx context.Context, userID, rewardID uint64) (repository.Redemption, error)
	CloseCard(ctx context.Context, cardID uint64, points int64) error
	History(ctx context.Context, userID uint64) ([]model.PointTransaction, error)
}

var (
	_ UserStore   = (*repository.UserRepo)(nil)
	_ TokenStore  = (*repository.TokenRepo)(nil)
	_ CardStore   = (*repository.CardRepo)(nil)
	_ StatusStore = (*repository.CardStatusRepo)(nil)
	_ RewardStore = (*repository.RewardRepo)(nil)
	_ LedgerStore = (*repository.LedgerRepo)(nil)
)
