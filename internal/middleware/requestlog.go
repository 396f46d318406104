package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/metrics"
)

// RequestLogger logs one line per request and records the HTTP metrics.
// It must run after the request id middleware and wraps the rest of the
// chain, so errors returned by handlers are rendered before logging.
func RequestLogger(log zerolog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			latency := time.Since(start)

			if m != nil {
				m.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(res.Status)).Inc()
				m.HTTPDuration.WithLabelValues(req.Method, route).Observe(latency.Seconds())
			}

			ev := log.Info()
			switch {
			case res.Status >= 500:
				ev = log.Error()
			case res.Status >= 400:
				ev = log.Warn()
			}
			if err != nil {
				ev = ev.Err(err)
			}
			ev.Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("route", route).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", latency).
				Str("ip", c.RealIP()).
				Str("user", userKey(c)).
				Msg("request")
			return nil
		}
	}
}
