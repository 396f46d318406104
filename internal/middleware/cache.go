package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/config"
	"github.com/iliyamo/garbage-collector/internal/metrics"
)

// cachedResponse is what gets stored per key.  Only 200 responses are
// cached, so the status is implied.
type cachedResponse struct {
	ContentType string `json:"ct"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the response body into buf until limit bytes; past
// that the response is marked too large to cache.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKey is prefix:route, plus the canonical query string when the
// strategy is route_query.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	key := cfg.Prefix + ":" + c.Path()
	if strings.EqualFold(cfg.KeyStrategy, "route") {
		return key
	}
	if q := c.QueryParams().Encode(); q != "" {
		key += "?" + q
	}
	return key
}

// NewRedisCache serves repeated GETs of a shared resource (the rewards
// catalog) from Redis.  Entries expire after cfg.TTL and are dropped
// early by PurgeCache on every catalog change.  Redis errors degrade to
// uncached responses.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, m *metrics.Metrics, log zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	count := func(result string) {
		if m != nil {
			m.CacheLookups.WithLabelValues(result).Inc()
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				count("bypass")
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			raw, err := rdb.Get(ctx, key).Bytes()
			switch {
			case err == nil:
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil {
					count("hit")
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(http.StatusOK, hit.ContentType, hit.Body)
				}
				log.Warn().Str("key", key).Msg("dropping undecodable cache entry")
			case err != redis.Nil:
				log.Warn().Err(err).Str("key", key).Msg("cache read failed")
			}
			count("miss")

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			entry, err := json.Marshal(cachedResponse{
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rdb.Set(context.WithoutCancel(ctx), key, entry, ttl).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("cache write failed")
			}
			return nil
		}
	}
}

// PurgeCache deletes every key under prefix.  A nil client is a no-op.
func PurgeCache(ctx context.Context, rdb *redis.Client, prefix string) error {
	if rdb == nil {
		return nil
	}
	var keys []string
	iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}
