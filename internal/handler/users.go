package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/service"
)

// UserHandler serves the admin user-management endpoints.
type UserHandler struct {
	Users *service.UserService
}

// List handles GET /api/users.
func (h *UserHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	users, err := h.Users.List(ctx, a)
	if err != nil {
		return err
	}
	out := make([]model.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	return respond(c, http.StatusOK, "ok", echo.Map{"users": out})
}

// Update handles PUT /api/users/:id.
func (h *UserHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in service.UpdateUserInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.Update(ctx, a, id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User updated", echo.Map{"user": u.View()})
}

// SetStatus handles PUT /api/users/:id/status.
func (h *UserHandler) SetStatus(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in service.SetStatusInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.SetStatus(ctx, a, id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User status updated", echo.Map{"user": u.View()})
}
