package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionCookie is the name of the http-only cookie carrying the session
// token.
const SessionCookie = "token"

// TokenVerifier validates a raw session token and returns its user id and
// role.  utils.JWTVerifier is the production implementation.
type TokenVerifier interface {
	Verify(raw string) (userID uint64, role string, err error)
}

// SessionAuth returns an Echo middleware that accepts the session token
// from the `token` cookie or an `Authorization: Bearer` header, verifies it
// and stores the user id and role on the context under "user_id" and
// "role".  Requests without a valid token are rejected with 401.
func SessionAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return deny(c, http.StatusUnauthorized, "missing session token")
			}
			uid, role, err := v.Verify(raw)
			if err != nil {
				return deny(c, http.StatusUnauthorized, "invalid or expired session")
			}
			c.Set(ctxUserID, uid)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// tokenFromRequest prefers the cookie; browser clients always send it.
func tokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// deny writes the standard error envelope.
func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg, "error": http.StatusText(status)})
}
