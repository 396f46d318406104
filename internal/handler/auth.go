package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/garbage-collector/internal/middleware"
	"github.com/iliyamo/garbage-collector/internal/service"
)

// AuthHandler groups the /auth endpoints and the caller's own profile.
type AuthHandler struct {
	Auth   *service.AuthService
	Ledger *service.LedgerService

	CookieSecure bool   // set Secure on the session cookie (prod)
	CookieDomain string // optional cookie domain
}

// ---------- DTOs ----------

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

// ---------- endpoints ----------

// Register handles POST /auth/register.  A stored account whose
// verification email failed still answers 201 with mail_sent=false.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Auth.Register(ctx, in)
	if err != nil {
		return err
	}
	msg := "Registration successful. Please check your email to verify your account."
	if !res.MailSent {
		msg = "Registration succeeded, but the verification email could not be sent."
	}
	return respond(c, http.StatusCreated, msg, echo.Map{
		"user":      res.User.View(),
		"mail_sent": res.MailSent,
	})
}

// VerifyEmail handles GET /auth/verify-email?token=.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return badRequest("token is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := h.Auth.VerifyEmail(ctx, token)
	if err != nil {
		return err
	}
	msg := "Email verified successfully."
	if out == service.AlreadyVerified {
		msg = "Email already verified."
	}
	return respond(c, http.StatusOK, msg, nil)
}

// Login handles POST /auth/login.  The session JWT is set as an http-only
// cookie and also returned in the body for API clients.
func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, in)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie(res.Session.Token, res.Session.Exp))
	return respond(c, http.StatusOK, "Login successful", echo.Map{
		"user":       res.User.View(),
		"token":      res.Session.Token,
		"expires_at": res.Session.Exp.UTC().Format(time.RFC3339),
	})
}

// Logout clears the session cookie.  Tokens are stateless, so nothing is
// revoked server side.
func (h *AuthHandler) Logout(c echo.Context) error {
	ck := h.sessionCookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	c.SetCookie(ck)
	return respond(c, http.StatusOK, "Logged out", nil)
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Auth.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password reset email sent.", nil)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var in service.ResetPasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, in); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password has been reset successfully.", nil)
}

// Contact handles POST /auth/send-email, the public contact form.
func (h *AuthHandler) Contact(c echo.Context) error {
	var in service.ContactInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Auth.Contact(ctx, in); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Email sent successfully", nil)
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Auth.Me(ctx, a.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ok", echo.Map{"user": u.View()})
}

// Points handles GET /api/me/points: current balance plus ledger history.
func (h *AuthHandler) Points(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Auth.Me(ctx, a.ID)
	if err != nil {
		return err
	}
	history, err := h.Ledger.History(ctx, a.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ok", echo.Map{
		"points":       u.Points,
		"transactions": history,
	})
}

func (h *AuthHandler) sessionCookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
