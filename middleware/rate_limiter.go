package middleware

import (
	"strconv"

	"github.com/KOMKZ/yogan-shield/httpx"
	"github.com/KOMKZ/yogan-shield/limiter"
	"github.com/gin-gonic/gin"
)

// ResetTimeFormat X-RateLimit-Reset 格式（RFC3339，毫秒，UTC）
const ResetTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RateLimitConfig 限流中间件配置
type RateLimitConfig struct {
	// Limiter 限流器（必需），RateLimiter 或 AdaptiveRateLimiter
	Limiter limiter.Checker

	// IdentityFunc 自定义身份提取（默认：ClientIP + TenantID）
	IdentityFunc func(*gin.Context) limiter.Identity

	// RateLimitHandler 自定义限流响应函数（默认：429 + Retry-After）
	RateLimitHandler func(*gin.Context, limiter.Decision)

	// SkipFunc 跳过限流的条件函数（可选）
	SkipFunc func(*gin.Context) bool

	// SkipPaths 跳过限流的路径列表（可选）
	SkipPaths []string
}

// DefaultRateLimitConfig 默认限流配置
func DefaultRateLimitConfig(l limiter.Checker) RateLimitConfig {
	return RateLimitConfig{
		Limiter:          l,
		IdentityFunc:     IdentityFromRequest,
		RateLimitHandler: defaultRateLimitHandler,
	}
}

// RateLimit 创建限流中间件
//
// 每个未跳过的请求都带上 X-RateLimit-Limit / X-RateLimit-Remaining / X-RateLimit-Reset；
// 超限返回 429 {error, message, code, retryAfter} 与 Retry-After。
// 存储故障时限流器自身放行，中间件不做额外处理。
//
// 用法：
//
//	cfg := middleware.DefaultRateLimitConfig(rateLimiter)
//	cfg.SkipPaths = []string{"/health", "/stats"}
//	engine.Use(middleware.RateLimit(cfg))
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		panic("RateLimitConfig.Limiter cannot be nil")
	}
	if cfg.IdentityFunc == nil {
		cfg.IdentityFunc = IdentityFromRequest
	}
	if cfg.RateLimitHandler == nil {
		cfg.RateLimitHandler = defaultRateLimitHandler
	}

	skipPathsMap := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPathsMap[path] = true
	}

	return func(c *gin.Context) {
		if skipPathsMap[c.Request.URL.Path] {
			c.Next()
			return
		}
		if cfg.SkipFunc != nil && cfg.SkipFunc(c) {
			c.Next()
			return
		}

		decision := cfg.Limiter.Check(c.Request.Context(), cfg.IdentityFunc(c))
		SetRateLimitHeaders(c, decision)

		if !decision.Allowed {
			cfg.RateLimitHandler(c, decision)
			return
		}

		c.Next()
	}
}

// IdentityFromRequest 限流身份：客户端地址 + 租户
func IdentityFromRequest(c *gin.Context) limiter.Identity {
	return limiter.Identity{
		ClientIP: ClientIP(c),
		TenantID: TenantID(c),
	}
}

// SetRateLimitHeaders 写入限流响应头
func SetRateLimitHeaders(c *gin.Context, d limiter.Decision) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	c.Header("X-RateLimit-Reset", d.ResetTime.UTC().Format(ResetTimeFormat))
}

func defaultRateLimitHandler(c *gin.Context, d limiter.Decision) {
	httpx.AbortWithError(c, limiter.ErrLimitExceeded.
		WithData(httpx.RetryAfterKey, d.RetryAfterSeconds()))
}
