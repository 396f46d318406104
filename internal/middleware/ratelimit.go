package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/config"
	"github.com/iliyamo/garbage-collector/internal/metrics"
)

// bucketScript takes one token from the bucket at KEYS[1].  The bucket
// refills continuously at ARGV[3] tokens per millisecond up to ARGV[2].
// Reply: {allowed (0|1), whole tokens left, ms until the next token}.
var bucketScript = redis.NewScript(`
local now  = tonumber(ARGV[1])
local cap  = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or cap
local ts     = tonumber(state[2]) or now
tokens = math.min(cap, tokens + math.max(0, now - ts) * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return { allowed, math.floor(tokens), wait }
`)

type decision struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

// parseDecision decodes the script reply; go-redis returns Lua integers
// as int64.
func parseDecision(v any) (decision, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return decision{}, false
	}
	var n [3]int64
	for i, x := range arr {
		if n[i], ok = x.(int64); !ok {
			return decision{}, false
		}
	}
	return decision{allowed: n[0] == 1, remaining: n[1], wait: time.Duration(n[2]) * time.Millisecond}, true
}

// NewTokenBucket rate-limits the public /auth endpoints with a Redis token
// bucket keyed by buildRateKey.  It fails open: when disabled, when Redis
// is nil or when a call errors, requests go through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, m *metrics.Metrics, log zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	perMs := float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds())
	rate := strconv.FormatFloat(perMs, 'f', -1, 64)
	ttl := cfg.TTL.Milliseconds()
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, rate, ttl).Result()
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}
			d, ok := parseDecision(res)
			if !ok {
				log.Warn().Str("key", key).Interface("reply", res).Msg("rate limiter returned an unexpected reply")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}

			h.Set(echo.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.wait.Seconds()))))
			if m != nil {
				m.RateLimited.WithLabelValues(c.Path()).Inc()
			}
			log.Info().Str("key", key).Dur("wait", d.wait).Msg("rate limited")
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// buildRateKey scopes the bucket by client ip, by route, or by both
// (default).
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		return cfg.Prefix + ":" + ip
	case "route":
		return cfg.Prefix + ":" + c.Path()
	default:
		return cfg.Prefix + ":" + ip + ":" + c.Path()
	}
}
