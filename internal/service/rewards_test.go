package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/service"
	"github.com/iliyamo/garbage-collector/internal/service/servicetest"
)

func TestRewardCatalog_AdminOnly(t *testing.T) {
	ctx := context.Background()
	env := servicetest.NewEnv()
	user := env.ActiveUser("rita@example.com", "password123", model.RoleUser)
	admin := env.ActiveUser("admin@example.com", "password123", model.RoleAdmin)

	purged := 0
	env.Rewards.OnChange = func(context.Context) { purged++ }

	_, err := env.Rewards.Create(ctx, servicetest.Actor(user), service.RewardInput{Title: "Mug", Points: 100})
	assert.ErrorIs(t, err, service.ErrForbidden)

	mug, err := env.Rewards.Create(ctx, servicetest.Actor(admin), service.RewardInput{Title: " Mug ", Points: 100})
	require.NoError(t, err)
	assert.Equal(t, "Mug", mug.Title)

	_, err = env.Rewards.Create(ctx, servicetest.Actor(admin), service.RewardInput{Title: "Free", Points: 0})
	assert.ErrorIs(t, err, service.ErrValidation)

	assert.ErrorIs(t, env.Rewards.Delete(ctx, servicetest.Actor(user), mug.ID), service.ErrForbidden)
	got, err := env.Rewards.Get(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, mug, got, "row unchanged after a forbidden delete")

	upd, err := env.Rewards.Update(ctx, servicetest.Actor(admin), mug.ID, service.RewardInput{Title: "Big mug", Points: 120})
	require.NoError(t, err)
	assert.Equal(t, int64(120), upd.Points)

	_, err = env.Rewards.Update(ctx, servicetest.Actor(admin), 999, service.RewardInput{Title: "x", Points: 1})
	assert.ErrorIs(t, err, service.ErrNotFound)

	require.NoError(t, env.Rewards.Delete(ctx, servicetest.Actor(admin), mug.ID))
	_, err = env.Rewards.Get(ctx, mug.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.Equal(t, 3, purged)
}

func TestRewardDelete_RedeemedIsConflict(t *testing.T) {
	ctx := context.Background()
	env := servicetest.NewEnv()
	u := userWithPoints(env, "rita@example.com", 100)
	admin := env.ActiveUser("admin@example.com", "password123", model.RoleAdmin)
	mug := env.DB.SeedReward("Mug", 100)

	_, err := env.Ledger.SelectReward(ctx, servicetest.Actor(u), mug.ID)
	require.NoError(t, err)

	err = env.Rewards.Delete(ctx, servicetest.Actor(admin), mug.ID)
	assert.ErrorIs(t, err, service.ErrConflict)
}

func TestRewardList(t *testing.T) {
	env := servicetest.NewEnv()
	env.DB.SeedReward("Tote bag", 60)
	env.DB.SeedReward("Mug", 100)
	env.DB.SeedReward("Sticker", 10)

	list, err := env.Rewards.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Sticker", list[0].Title)
	assert.Equal(t, "Mug", list[2].Title)
}
