package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/config"
	"github.com/iliyamo/garbage-collector/internal/handler"
	"github.com/iliyamo/garbage-collector/internal/metrics"
	"github.com/iliyamo/garbage-collector/internal/middleware"
)

// Deps carries everything the route table needs.  Redis may be nil, in
// which case rate limiting and response caching are disabled.
type Deps struct {
	Config   config.Config
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Redis    *redis.Client
	DB       handler.Pinger
	Verifier middleware.TokenVerifier

	Auth    *handler.AuthHandler
	Cards   *handler.CardHandler
	Rewards *handler.RewardHandler
	Users   *handler.UserHandler
}

// New builds the Echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.Validator{}
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.RequestLogger(d.Log, d.Metrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.Config.App.Origins(),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	// Room for one image plus the text fields of a card.
	e.Use(echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{
		Limit: bodyLimit(d.Config.Upload.MaxImageBytes),
	}))

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterAPI(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}

// bodyLimit renders the request body cap in the "NM" form Echo expects.
func bodyLimit(maxImage int64) string {
	mib := maxImage>>20 + 1
	if mib < 2 {
		mib = 2
	}
	return strconv.FormatInt(mib, 10) + "M"
}
