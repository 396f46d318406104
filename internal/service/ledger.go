package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/metrics"
	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/repository"
)

// LedgerService spends and reports points.  Crediting happens on card
// closure, see CardService.Close.
type LedgerService struct {
	Ledger  LedgerStore
	Rewards RewardStore
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// SelectReward redeems rewardID for the actor.  Balance checks, the debit,
// the redemption row and the ledger entry form one transaction.
func (s *LedgerService) SelectReward(ctx context.Context, actor Actor, rewardID uint64) (repository.Redemption, error) {
	red, err := s.Ledger.Redeem(ctx, actor.ID, rewardID)
	if s.Metrics != nil {
		s.Metrics.Redemptions.WithLabelValues(redemptionOutcome(err)).Inc()
		if err == nil {
			s.Metrics.PointsSpent.Add(float64(red.Cost))
		}
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Redemption{}, notFound("reward")
		}
		return repository.Redemption{}, translate("redeem reward", err)
	}
	s.Log.Info().Uint64("user_id", actor.ID).Uint64("reward_id", rewardID).
		Int64("cost", red.Cost).Int64("balance", red.Balance).Msg("reward redeemed")
	return red, nil
}

func redemptionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, repository.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// ClaimedRewards lists the rewards the user has redeemed.
func (s *LedgerService) ClaimedRewards(ctx context.Context, userID uint64) ([]model.Reward, error) {
	out, err := s.Rewards.ClaimedBy(ctx, userID)
	return out, translate("list claimed rewards", err)
}

// History lists the user's ledger entries, newest first.
func (s *LedgerService) History(ctx context.Context, userID uint64) ([]model.PointTransaction, error) {
	out, err := s.Ledger.History(ctx, userID)
	return out, translate("list point history", err)
}
