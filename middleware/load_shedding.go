package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/KOMKZ/yogan-shield/loadshed"
	"github.com/gin-gonic/gin"
)

// HeaderPriority 请求优先级请求头（整数，越大越重要）
const HeaderPriority = "X-Priority"

// LoadSheddingConfig 负载降级中间件配置
type LoadSheddingConfig struct {
	// Handler 负载处理器（必需）
	Handler *loadshed.Handler

	// PriorityFunc 自定义优先级提取（默认：X-Priority，缺省 5）
	PriorityFunc func(*gin.Context) int

	// RequestTypeFunc 降级响应中的 requestType（默认：路由模板，未匹配时为路径）
	RequestTypeFunc func(*gin.Context) string

	// IsError 由响应状态判定请求是否失败（默认：>= 500）
	IsError func(status int) bool

	// SkipPaths 不参与统计也不会被拒绝的路径（默认取 Handler 配置）
	SkipPaths []string
}

// DefaultLoadSheddingConfig 默认负载降级配置
func DefaultLoadSheddingConfig(h *loadshed.Handler) LoadSheddingConfig {
	cfg := LoadSheddingConfig{
		Handler:         h,
		PriorityFunc:    priorityFromHeader,
		RequestTypeFunc: requestType,
		IsError:         serverError,
	}
	if h != nil {
		cfg.SkipPaths = h.Config().SkipPaths
	}
	return cfg
}

// LoadShedding 创建负载降级中间件
//
// 每个请求（放行或拒绝、panic、客户端中断）在返回时恰好记录一次。
// 被拒绝的请求返回 503 降级响应与 Retry-After，记为非错误请求。
func LoadShedding(cfg LoadSheddingConfig) gin.HandlerFunc {
	if cfg.Handler == nil {
		panic("LoadSheddingConfig.Handler cannot be nil")
	}
	if cfg.PriorityFunc == nil {
		cfg.PriorityFunc = priorityFromHeader
	}
	if cfg.RequestTypeFunc == nil {
		cfg.RequestTypeFunc = requestType
	}
	if cfg.IsError == nil {
		cfg.IsError = serverError
	}

	skipPathsMap := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPathsMap[path] = true
	}

	h := cfg.Handler
	return func(c *gin.Context) {
		if skipPathsMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		shed := false
		defer func() {
			rec := recover()
			failed := false
			switch {
			case shed:
			case rec != nil:
				failed = true
			case c.Request.Context().Err() != nil:
				// 客户端中断
				failed = true
			default:
				failed = cfg.IsError(c.Writer.Status())
			}
			h.RecordRequest(time.Since(start), failed)
			if rec != nil {
				panic(rec)
			}
		}()

		priority := cfg.PriorityFunc(c)
		if !h.ShouldAcceptRequest(priority) {
			shed = true
			fb := h.Shed(c.Request.Context(), priority, cfg.RequestTypeFunc(c))
			c.Header("Retry-After", strconv.Itoa(fb.RetryAfter))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, fb)
			return
		}

		c.Next()
	}
}

func priorityFromHeader(c *gin.Context) int {
	return loadshed.ParsePriority(c.GetHeader(HeaderPriority))
}

func requestType(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

func serverError(status int) bool {
	return status >= http.StatusInternalServerError
}
