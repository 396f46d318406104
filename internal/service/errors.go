package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/garbage-collector/internal/repository"
)

// Service-level sentinel errors.  Handlers map them to HTTP status codes;
// their messages are safe to show to clients.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrSamePassword        = errors.New("new password cannot be the same as the current password")
	ErrInsufficientBalance = errors.New("not enough points")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrWrongPassword       = errors.New("wrong password")
	ErrUnverified          = errors.New("please verify your email before logging in")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrAlreadyClaimed      = errors.New("reward already claimed")
	ErrAlreadyClosed       = errors.New("card already closed")
	ErrMailDelivery        = errors.New("failed to send email")
)

// detailed is a sentinel with a client-facing message of its own.
type detailed struct {
	kind error
	msg  string
}

func (e *detailed) Error() string { return e.msg }
func (e *detailed) Unwrap() error { return e.kind }

func invalid(format string, args ...any) error {
	return &detailed{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func notFound(what string) error {
	return &detailed{kind: ErrNotFound, msg: what + " not found"}
}

func conflict(msg string) error {
	return &detailed{kind: ErrConflict, msg: msg}
}

// translate maps repository sentinels onto service sentinels.  Unknown
// errors are wrapped with op and surface as persistence failures.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate), errors.Is(err, repository.ErrConflict):
		return ErrConflict
	case errors.Is(err, repository.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, repository.ErrAlreadyClaimed):
		return ErrAlreadyClaimed
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, repository.ErrAlreadyClosed):
		return ErrAlreadyClosed
	}
	return fmt.Errorf("%s: %w", op, err)
}
