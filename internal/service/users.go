package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/repository"
)

// UserService is the admin console over accounts.
type UserService struct {
	Users UserStore
	Log   zerolog.Logger
}

// UpdateUserInput holds the admin-editable profile fields.
type UpdateUserInput struct {
	FirstName string     `json:"firstName" validate:"required,max=100"`
	LastName  string     `json:"lastName" validate:"required,max=100"`
	Email     string     `json:"email" validate:"required,email,max=255"`
	Role      model.Role `json:"role" validate:"required,oneof=user admin"`
}

// List returns every account.
func (s *UserService) List(ctx context.Context, actor Actor) ([]model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	out, err := s.Users.List(ctx)
	return out, translate("list users", err)
}

// Update edits another account's profile and role.
func (s *UserService) Update(ctx context.Context, actor Actor, id uint64, in UpdateUserInput) (model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return model.User{}, err
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := Validate(in); err != nil {
		return model.User{}, err
	}
	err := s.Users.UpdateProfile(ctx, id, in.FirstName, in.LastName, in.Email, in.Role)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.User{}, notFound("user")
	case errors.Is(err, repository.ErrDuplicate):
		return model.User{}, conflict("email already in use")
	case err != nil:
		return model.User{}, translate("update user", err)
	}
	s.Log.Info().Uint64("user_id", id).Uint64("actor_id", actor.ID).Str("role", string(in.Role)).Msg("user updated")
	u, err := s.Users.GetByID(ctx, id)
	return u, translate("reload user", err)
}

// SetStatusInput is the enable/disable toggle.
type SetStatusInput struct {
	Status model.AccountStatus `json:"status" validate:"required,oneof=active disabled"`
}

// SetStatus enables or disables an account.  Disabled accounts cannot log
// in; existing sessions run until they expire.
func (s *UserService) SetStatus(ctx context.Context, actor Actor, id uint64, in SetStatusInput) (model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return model.User{}, err
	}
	if err := Validate(in); err != nil {
		return model.User{}, err
	}
	err := s.Users.SetStatus(ctx, id, in.Status)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, notFound("user")
	}
	if err != nil {
		return model.User{}, translate("set user status", err)
	}
	s.Log.Info().Uint64("user_id", id).Uint64("actor_id", actor.ID).Str("status", string(in.Status)).Msg("user status changed")
	u, err := s.Users.GetByID(ctx, id)
	return u, translate("reload user", err)
}
