package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/service"
)

// RewardHandler serves the rewards catalog and redemption.
type RewardHandler struct {
	Rewards *service.RewardService
	Ledger  *service.LedgerService
}

// List handles GET /api/rewards.  The route is wrapped by the response
// cache, so the body must not depend on the caller.
func (h *RewardHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Rewards.List(ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.Reward{}
	}
	return respond(c, http.StatusOK, "ok", echo.Map{"rewards": list})
}

// Used handles GET /api/rewards/used.
func (h *RewardHandler) Used(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Ledger.ClaimedRewards(ctx, a.ID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.Reward{}
	}
	return respond(c, http.StatusOK, "ok", echo.Map{"rewards": list})
}

// Create handles POST /api/rewards.
func (h *RewardHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var in service.RewardInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	r, err := h.Rewards.Create(ctx, a, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Reward created", echo.Map{"reward": r})
}

// Update handles PUT /api/rewards/:id.
func (h *RewardHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in service.RewardInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	r, err := h.Rewards.Update(ctx, a, id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reward updated", echo.Map{"reward": r})
}

// Delete handles DELETE /api/rewards/:id.
func (h *RewardHandler) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Rewards.Delete(ctx, a, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reward deleted", nil)
}

// Select handles POST /api/rewards/:id/select.
func (h *RewardHandler) Select(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	red, err := h.Ledger.SelectReward(ctx, a, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Reward claimed", echo.Map{
		"redemption": red.UserReward,
		"cost":       red.Cost,
		"points":     red.Balance,
	})
}
