package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/garbage-collector/internal/middleware"
	"github.com/iliyamo/garbage-collector/internal/model"
)

// RegisterAPI registers the session-protected /api endpoints.  Admin-only
// routes add RequireRole; ownership checks happen in the services.
func RegisterAPI(e *echo.Echo, d Deps) {
	api := e.Group("/api", middleware.SessionAuth(d.Verifier))
	admin := middleware.RequireRole(string(model.RoleAdmin))

	api.GET("/me", d.Auth.Me)
	api.GET("/me/points", d.Auth.Points)

	c := d.Cards
	api.GET("/cards", c.List)
	api.POST("/cards", c.Create)
	api.GET("/cards/:slug", c.Get)
	api.PUT("/cards/:slug", c.Update)
	api.DELETE("/cards/:slug", c.Delete)
	api.PUT("/cards/:slug/close", c.Close, admin)
	api.GET("/cards/:slug/statuses", c.Statuses)
	api.POST("/cards/:slug/statuses", c.AppendStatus, admin)

	r := d.Rewards
	api.GET("/rewards", r.List, middleware.NewRedisCache(d.Config.Cache, d.Redis, d.Metrics, d.Log))
	api.GET("/rewards/used", r.Used)
	api.POST("/rewards", r.Create, admin)
	api.PUT("/rewards/:id", r.Update, admin)
	api.DELETE("/rewards/:id", r.Delete, admin)
	api.POST("/rewards/:id/select", r.Select)

	u := d.Users
	api.GET("/users", u.List, admin)
	api.PUT("/users/:id", u.Update, admin)
	api.PUT("/users/:id/status", u.SetStatus, admin)
}
