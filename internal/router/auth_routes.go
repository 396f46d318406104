package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/garbage-collector/internal/middleware"
)

// RegisterAuth registers the unauthenticated /auth endpoints.  Endpoints
// that send mail or check passwords share one Redis token bucket.
func RegisterAuth(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Metrics, d.Log)
	a := d.Auth

	g := e.Group("/auth")
	g.POST("/register", a.Register, limit)
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/login", a.Login, limit)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword, limit)
	g.POST("/reset-password", a.ResetPassword, limit)
	g.POST("/send-email", a.Contact, limit)
}
