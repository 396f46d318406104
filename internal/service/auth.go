package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/mail"
	"github.com/iliyamo/garbage-collector/internal/metrics"
	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/repository"
	"github.com/iliyamo/garbage-collector/internal/utils"
)

// AuthService owns the account lifecycle: registration, email
// verification, login and password reset.
type AuthService struct {
	Users   UserStore
	Tokens  TokenStore
	Mail    mail.Sender
	Metrics *metrics.Metrics
	Log     zerolog.Logger

	Secret     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
	BcryptCost int
	BaseURL    string
	AdminEmail string

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) event(event string, err error) {
	if s.Metrics != nil {
		s.Metrics.AuthEvents.WithLabelValues(event, metrics.Outcome(err)).Inc()
	}
}

func (s *AuthService) mailed(kind string, err error) {
	if s.Metrics != nil {
		s.Metrics.MailMessages.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	IDNumber  string `json:"idNumber" validate:"required,max=32"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

func (in *RegisterInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.IDNumber = strings.TrimSpace(in.IDNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// RegisterResult reports the created user.  MailSent is false when the
// account was stored but the verification email could not be sent.
type RegisterResult struct {
	User     model.User
	MailSent bool
}

// hashPassword enforces bcrypt's 72 byte input limit as a validation error.
// The validator's max counts runes, so multibyte passwords can pass it and
// still be too long.
func hashPassword(field, plain string, cost int) (string, error) {
	if len(plain) > utils.MaxPasswordBytes {
		return "", invalid("%s must be at most %d bytes", field, utils.MaxPasswordBytes)
	}
	hash, err := utils.HashPassword(plain, cost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", invalid("%s must be at most %d bytes", field, utils.MaxPasswordBytes)
	}
	return hash, err
}

// Register creates an inactive account and emails its verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res RegisterResult, err error) {
	defer func() { s.event("register", err) }()

	in.normalize()
	if err := Validate(in); err != nil {
		return RegisterResult{}, err
	}
	hash, err := hashPassword("password", in.Password, s.BcryptCost)
	if err != nil {
		return RegisterResult{}, err
	}
	rawToken, err := utils.NewOpaqueToken()
	if err != nil {
		return RegisterResult{}, err
	}
	tokenHash := utils.HashToken(rawToken)

	u := model.User{
		FirstName:             in.FirstName,
		LastName:              in.LastName,
		IDNumber:              in.IDNumber,
		Email:                 in.Email,
		PasswordHash:          hash,
		Role:                  model.RoleUser,
		Status:                model.AccountActive,
		VerificationTokenHash: &tokenHash,
	}
	id, err := s.Users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return RegisterResult{}, conflict("an account with this email or id number already exists")
		}
		return RegisterResult{}, translate("create user", err)
	}
	u.ID = id

	msg, err := mail.VerificationEmail(s.BaseURL, u.Email, u.FirstName, rawToken)
	if err == nil {
		err = s.Mail.Send(ctx, msg)
	}
	s.mailed("verify", err)
	if err != nil {
		s.Log.Error().Err(err).Uint64("user_id", id).Msg("verification email failed")
		return RegisterResult{User: u, MailSent: false}, nil
	}
	return RegisterResult{User: u, MailSent: true}, nil
}

// VerifyOutcome describes what VerifyEmail did.
type VerifyOutcome int

const (
	// Verified means the account was activated by this call.
	Verified VerifyOutcome = iota
	// AlreadyVerified means the account was active before this call.
	AlreadyVerified
	// UnknownToken means no account holds the token.  Callers still report
	// success so tokens cannot be probed.
	UnknownToken
)

// VerifyEmail activates the account holding token.  It is idempotent.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (out VerifyOutcome, err error) {
	defer func() { s.event("verify_email", err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return 0, invalid("token is required")
	}
	hash := utils.HashToken(token)

	u, err := s.Users.GetByVerificationHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		consumed, cerr := s.Tokens.WasConsumed(ctx, hash, repository.PurposeVerify)
		if cerr != nil {
			s.Log.Warn().Err(cerr).Msg("consumed token lookup failed")
		}
		if consumed {
			s.Log.Info().Msg("verification token already consumed")
			return AlreadyVerified, nil
		}
		s.Log.Info().Msg("verification token never issued")
		return UnknownToken, nil
	}
	if err != nil {
		return 0, translate("lookup verification token", err)
	}
	if u.IsActivated {
		return AlreadyVerified, nil
	}

	activated, err := s.Users.Activate(ctx, u.ID)
	if err != nil {
		return 0, translate("activate user", err)
	}
	if err := s.Tokens.MarkConsumed(ctx, hash, repository.PurposeVerify); err != nil {
		s.Log.Warn().Err(err).Uint64("user_id", u.ID).Msg("recording consumed verification token failed")
	}
	if !activated {
		return AlreadyVerified, nil
	}
	s.Log.Info().Uint64("user_id", u.ID).Msg("account verified")
	return Verified, nil
}

// LoginInput holds login credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the authenticated user and a signed session token.
type LoginResult struct {
	User    model.User
	Session utils.SessionToken
}

// Login checks credentials and issues a session token.  Checks run in a
// fixed order: unknown email, wrong password, unverified, disabled.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (res LoginResult, err error) {
	defer func() { s.event("login", err) }()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := Validate(in); err != nil {
		return LoginResult{}, err
	}
	u, err := s.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, notFound("user")
	}
	if err != nil {
		return LoginResult{}, translate("lookup user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return LoginResult{}, ErrWrongPassword
	}
	if !u.IsActivated {
		return LoginResult{}, ErrUnverified
	}
	if u.Status == model.AccountDisabled {
		return LoginResult{}, ErrAccountDisabled
	}
	tok, err := utils.NewSessionToken(s.Secret, u.ID, string(u.Role), s.SessionTTL)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, Session: tok}, nil
}

// ForgotPassword issues a reset token for email if such an account exists.
// The result never reveals whether it does.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.event("forgot_password", err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return invalid("email is required")
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.Log.Info().Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return translate("lookup user", err)
	}

	rawToken, err := utils.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.Users.SetResetToken(ctx, u.ID, utils.HashToken(rawToken), s.now().Add(s.ResetTTL)); err != nil {
		return translate("store reset token", err)
	}

	msg, err := mail.PasswordResetEmail(s.BaseURL, u.Email, u.FirstName, rawToken, humanDuration(s.ResetTTL))
	if err == nil {
		err = s.Mail.Send(ctx, msg)
	}
	s.mailed("reset", err)
	if err != nil {
		s.Log.Error().Err(err).Uint64("user_id", u.ID).Msg("password reset email failed")
	}
	return nil
}

// ResetPasswordInput is the reset form.
type ResetPasswordInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// ResetPassword redeems a reset token.  The token must be current and
// unexpired at call time, and the new password must differ from the old.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	defer func() { s.event("reset_password", err) }()

	in.Token = strings.TrimSpace(in.Token)
	if err := Validate(in); err != nil {
		return err
	}
	hash := utils.HashToken(in.Token)
	now := s.now()

	u, err := s.Users.GetByValidResetHash(ctx, hash, now)
	if errors.Is(err, repository.ErrNotFound) {
		if consumed, _ := s.Tokens.WasConsumed(ctx, hash, repository.PurposeReset); consumed {
			s.Log.Info().Msg("reset token already consumed")
		}
		return ErrInvalidToken
	}
	if err != nil {
		return translate("lookup reset token", err)
	}
	if utils.VerifyPassword(u.PasswordHash, in.NewPassword) {
		return ErrSamePassword
	}

	newHash, err := hashPassword("newPassword", in.NewPassword, s.BcryptCost)
	if err != nil {
		return err
	}
	ok, err := s.Users.ResetPassword(ctx, u.ID, hash, newHash, now)
	if err != nil {
		return translate("reset password", err)
	}
	if !ok {
		return ErrInvalidToken
	}
	if err := s.Tokens.MarkConsumed(ctx, hash, repository.PurposeReset); err != nil {
		s.Log.Warn().Err(err).Uint64("user_id", u.ID).Msg("recording consumed reset token failed")
	}
	s.Log.Info().Uint64("user_id", u.ID).Msg("password reset")
	return nil
}

// ContactInput is the public contact form.
type ContactInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=5000"`
}

// Contact forwards a contact form submission to the admin inbox.
func (s *AuthService) Contact(ctx context.Context, in ContactInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)
	if err := Validate(in); err != nil {
		return err
	}
	msg, err := mail.ContactEmail(s.AdminEmail, in.Name, in.Email, in.Message)
	if err == nil {
		err = s.Mail.Send(ctx, msg)
	}
	s.mailed("contact", err)
	if err != nil {
		s.Log.Error().Err(err).Msg("contact email failed")
		return ErrMailDelivery
	}
	return nil
}

// Me returns the current user.
func (s *AuthService) Me(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, translate("lookup user", err)
	}
	return u, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
