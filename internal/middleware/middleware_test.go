package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/garbage-collector/internal/config"
	"github.com/iliyamo/garbage-collector/internal/metrics"
	"github.com/iliyamo/garbage-collector/internal/utils"
)

const testSecret = "middleware-test-secret-123"

func newSession(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewSessionToken(testSecret, id, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

// whoami echoes the identity SessionAuth stored on the context.
func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSessionAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, SessionAuth(utils.JWTVerifier{Secret: testSecret}))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+newSession(t, 7, "user"))
	rec = serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"user"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: newSession(t, 9, "admin")})
	rec = serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":9,"role":"admin"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	forged, err := utils.NewSessionToken("some-other-secret-xyz", 7, "admin", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+forged.Token)
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	expired, err := utils.NewSessionToken(testSecret, 7, "user", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: expired.Token})
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.DELETE("/rewards/1", whoami, SessionAuth(utils.JWTVerifier{Secret: testSecret}), RequireRole("admin"))

	req := httptest.NewRequest(http.MethodDelete, "/rewards/1", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+newSession(t, 7, "user"))
	rec := serve(e, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")

	req = httptest.NewRequest(http.MethodDelete, "/rewards/1", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+newSession(t, 1, "admin"))
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestRequireRoleWithoutSession(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, RequireRole("admin"))
	assert.Equal(t, http.StatusForbidden, serve(e, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:10.0.0.1:/auth/login", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:10.0.0.1", buildRateKey(cfg, c))
	cfg.KeyStrategy = "route"
	assert.Equal(t, "rl:/auth/login", buildRateKey(cfg, c))
}

func TestTokenBucketPassesThrough(t *testing.T) {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	e := echo.New()
	e.POST("/disabled", ok, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, nil, zerolog.Nop()))
	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodPost, "/disabled", nil)).Code)

	// Redis unreachable: the limiter fails open.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e.POST("/down", ok, NewTokenBucket(cfg, rdb, nil, zerolog.Nop()))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodPost, "/down", nil)).Code)
	}
}

func TestParseDecision(t *testing.T) {
	d, ok := parseDecision([]any{int64(0), int64(0), int64(1500)})
	require.True(t, ok)
	assert.False(t, d.allowed)
	assert.Equal(t, 1500*time.Millisecond, d.wait)

	d, ok = parseDecision([]any{int64(1), int64(4), int64(0)})
	require.True(t, ok)
	assert.True(t, d.allowed)
	assert.Equal(t, int64(4), d.remaining)

	_, ok = parseDecision([]any{"1", int64(0), int64(0)})
	assert.False(t, ok)
	_, ok = parseDecision(nil)
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	e := echo.New()
	mk := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/rewards")
		return c
	}
	cfg := config.CacheConfig{Prefix: "cache:rewards", KeyStrategy: "route_query"}
	assert.Equal(t, "cache:rewards:/api/rewards", cacheKey(cfg, mk("/api/rewards")))
	assert.Equal(t, cacheKey(cfg, mk("/api/rewards?b=2&a=1")), cacheKey(cfg, mk("/api/rewards?a=1&b=2")))
	assert.NotEqual(t, cacheKey(cfg, mk("/api/rewards?a=1")), cacheKey(cfg, mk("/api/rewards?a=2")))

	cfg.KeyStrategy = "route"
	assert.Equal(t, cacheKey(cfg, mk("/api/rewards?a=1")), cacheKey(cfg, mk("/api/rewards?a=2")))
}

func TestBodyRecorderOverflow(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &bodyRecorder{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = w.Write([]byte("abc"))
	assert.False(t, w.overflow)
	_, _ = w.Write([]byte("defg"))
	assert.True(t, w.overflow)
	assert.Zero(t, w.buf.Len())
	assert.Equal(t, "abcdefg", rec.Body.String(), "client still gets the full body")
}

func TestRedisCacheDisabledAndPurgeNil(t *testing.T) {
	e := echo.New()
	e.GET("/r", func(c echo.Context) error { return c.String(http.StatusOK, "x") },
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil, zerolog.Nop()))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/r", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, PurgeCache(context.Background(), nil, "cache:rewards"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf), m))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "nope") })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"route":"/boom"`)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/boom", "418")))
}
