package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KOMKZ/yogan-shield/limiter"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rateLimitNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupRateLimitTest(t *testing.T, store limiter.Store, maxRequests int64) (*gin.Engine, *limiter.RateLimiter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l, err := limiter.NewRateLimiter(limiter.Config{
		StoreType:   string(limiter.StoreTypeMemory),
		Window:      60 * time.Second,
		MaxRequests: maxRequests,
	}, store,
		limiter.WithClock(func() time.Time { return rateLimitNow }),
		limiter.WithLogger(logger.Nop()))
	require.NoError(t, err)

	cfg := DefaultRateLimitConfig(l)
	cfg.SkipPaths = []string{"/health"}

	router := gin.New()
	router.Use(RateLimit(cfg))
	router.GET("/api/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router, l
}

func doRequest(router http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRateLimit_HeadersAndRejection(t *testing.T) {
	router, _ := setupRateLimitTest(t, limiter.NewMemoryStore(), 3)
	ip := map[string]string{"X-Forwarded-For": "203.0.113.7"}

	for i, remaining := range []string{"2", "1", "0"} {
		resp := doRequest(router, "/api/test", ip)
		require.Equal(t, http.StatusOK, resp.Code, "request %d", i+1)
		assert.Equal(t, "3", resp.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, remaining, resp.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "2024-03-01T12:01:00.000Z", resp.Header().Get("X-RateLimit-Reset"))
	}

	resp := doRequest(router, "/api/test", ip)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "0", resp.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		Code       int    `json:"code"`
		RetryAfter int    `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Too Many Requests", body.Error)
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, limiter.ErrLimitExceeded.Code(), body.Code)
	assert.Equal(t, 60, body.RetryAfter)
}

func TestRateLimit_WindowsPerIdentity(t *testing.T) {
	router, _ := setupRateLimitTest(t, limiter.NewMemoryStore(), 1)

	assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", map[string]string{"X-Real-IP": "198.51.100.1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/api/test", map[string]string{"X-Real-IP": "198.51.100.1"}).Code)

	// 同一地址，不同租户
	assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", map[string]string{
		"X-Real-IP":    "198.51.100.1",
		HeaderTenantID: "acme",
	}).Code)

	// 不同地址
	assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", map[string]string{"X-Real-IP": "198.51.100.2"}).Code)
}

func TestRateLimit_SkipPaths(t *testing.T) {
	router, _ := setupRateLimitTest(t, limiter.NewMemoryStore(), 1)

	for i := 0; i < 3; i++ {
		resp := doRequest(router, "/health", nil)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Empty(t, resp.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_SkipFunc(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, err := limiter.NewRateLimiter(limiter.Config{StoreType: "memory", MaxRequests: 1}, limiter.NewMemoryStore(),
		limiter.WithLogger(logger.Nop()))
	require.NoError(t, err)

	cfg := DefaultRateLimitConfig(l)
	cfg.SkipFunc = func(c *gin.Context) bool { return c.GetHeader("X-Internal") == "1" }

	router := gin.New()
	router.Use(RateLimit(cfg))
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, doRequest(router, "/api/test", map[string]string{"X-Internal": "1"}).Code)
	}
}

type failingStore struct{}

func (failingStore) AtomicSlidingWindowIncrement(context.Context, string, time.Time, time.Duration, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestRateLimit_StoreFailureFailsOpen(t *testing.T) {
	router, _ := setupRateLimitTest(t, failingStore{}, 1)

	for i := 0; i < 3; i++ {
		resp := doRequest(router, "/api/test", nil)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "1", resp.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_RedisOutageFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	router, _ := setupRateLimitTest(t, limiter.NewRedisStore(client), 2)

	assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/api/test", nil).Code)

	mr.Close()
	assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", nil).Code)
}

func TestRateLimit_AdaptiveLimitInHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base, err := limiter.NewRateLimiter(limiter.Config{
		StoreType:   "memory",
		MaxRequests: 10,
		Adaptive:    limiter.AdaptiveConfig{Enabled: true, MaxOpsPerSecond: 1000},
	}, limiter.NewMemoryStore(), limiter.WithLogger(logger.Nop()))
	require.NoError(t, err)
	adaptive, err := limiter.NewAdaptiveRateLimiter(base, limiter.StaticLoadProbe{Ops: 800})
	require.NoError(t, err)

	router := gin.New()
	router.Use(RateLimit(DefaultRateLimitConfig(adaptive)))
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	resp := doRequest(router, "/api/test", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "5", resp.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", resp.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_NilLimiterPanics(t *testing.T) {
	assert.Panics(t, func() { RateLimit(RateLimitConfig{}) })
}
