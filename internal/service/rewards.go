package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/repository"
)

// RewardService manages the catalog.  Mutations are admin-only.
type RewardService struct {
	Rewards RewardStore
	Log     zerolog.Logger

	// OnChange runs after every successful mutation; the router uses it to
	// purge the cached catalog.
	OnChange func(ctx context.Context)
}

// RewardInput is the editable part of a reward.
type RewardInput struct {
	Title       string `json:"title" validate:"required,max=150"`
	Description string `json:"description" validate:"max=2000"`
	Points      int64  `json:"points" validate:"gt=0"`
}

func (s *RewardService) changed(ctx context.Context) {
	if s.OnChange != nil {
		s.OnChange(ctx)
	}
}

func normalizeReward(in *RewardInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	return Validate(in)
}

// List returns the catalog.
func (s *RewardService) List(ctx context.Context) ([]model.Reward, error) {
	out, err := s.Rewards.List(ctx)
	return out, translate("list rewards", err)
}

// Get returns one reward.
func (s *RewardService) Get(ctx context.Context, id uint64) (model.Reward, error) {
	rw, err := s.Rewards.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reward{}, notFound("reward")
	}
	return rw, translate("get reward", err)
}

// Create adds a reward to the catalog.
func (s *RewardService) Create(ctx context.Context, actor Actor, in RewardInput) (model.Reward, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Reward{}, err
	}
	if err := normalizeReward(&in); err != nil {
		return model.Reward{}, err
	}
	rw := model.Reward{Title: in.Title, Description: in.Description, Points: in.Points}
	if err := s.Rewards.Create(ctx, &rw); err != nil {
		return model.Reward{}, translate("create reward", err)
	}
	s.changed(ctx)
	s.Log.Info().Uint64("reward_id", rw.ID).Int64("points", rw.Points).Msg("reward created")
	return s.Get(ctx, rw.ID)
}

// Update edits a reward.
func (s *RewardService) Update(ctx context.Context, actor Actor, id uint64, in RewardInput) (model.Reward, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Reward{}, err
	}
	if err := normalizeReward(&in); err != nil {
		return model.Reward{}, err
	}
	err := s.Rewards.Update(ctx, model.Reward{ID: id, Title: in.Title, Description: in.Description, Points: in.Points})
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reward{}, notFound("reward")
	}
	if err != nil {
		return model.Reward{}, translate("update reward", err)
	}
	s.changed(ctx)
	return s.Get(ctx, id)
}

// Delete removes a reward that nobody has redeemed yet.
func (s *RewardService) Delete(ctx context.Context, actor Actor, id uint64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	err := s.Rewards.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("reward")
	case errors.Is(err, repository.ErrConflict):
		return conflict("reward has already been redeemed and cannot be deleted")
	case err != nil:
		return translate("delete reward", err)
	}
	s.changed(ctx)
	s.Log.Info().Uint64("reward_id", id).Uint64("actor_id", actor.ID).Msg("reward deleted")
	return nil
}
