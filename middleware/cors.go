package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig 跨域配置，供分析看板等浏览器端调用
type CORSConfig struct {
	// AllowOrigins 精确源、"*"，或 "https://*.example.com" 形式的子域通配
	AllowOrigins []string `mapstructure:"allow_origins"`
	AllowMethods []string `mapstructure:"allow_methods"`
	// AllowHeaders 默认包含租户、优先级与 TraceID 请求头
	AllowHeaders []string `mapstructure:"allow_headers"`
	// ExposeHeaders 默认暴露限流头与 TraceID
	ExposeHeaders []string `mapstructure:"expose_headers"`
	// AllowCredentials 为 true 时不回写 "*"，而是回写请求的 Origin
	AllowCredentials bool `mapstructure:"allow_credentials"`
	// MaxAge 预检缓存秒数
	MaxAge int `mapstructure:"max_age"`
}

const defaultCORSMaxAge = 12 * 60 * 60

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Origin", "Content-Type", "Accept", HeaderTenantID, HeaderPriority, TraceIDHeaderDefault}
	defaultCORSExpose  = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", TraceIDHeaderDefault}
)

// DefaultCORSConfig 允许任意源，不带凭证
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  append([]string(nil), defaultCORSMethods...),
		AllowHeaders:  append([]string(nil), defaultCORSHeaders...),
		ExposeHeaders: append([]string(nil), defaultCORSExpose...),
		MaxAge:        defaultCORSMaxAge,
	}
}

// originMatcher 预编译的源白名单
type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes [][2]string // scheme://  .domain
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{})}
	for _, o := range origins {
		switch {
		case o == "*":
			m.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			m.suffixes = append(m.suffixes, [2]string{scheme + "://", host})
		default:
			m.exact[o] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if m.any {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasPrefix(origin, s[0]) && strings.HasSuffix(origin, s[1]) &&
			len(origin) > len(s[0])+len(s[1]) {
			return true
		}
	}
	return false
}

// CORS 使用默认配置
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig 跨域中间件
//
// 没有 Origin 的请求与不在白名单内的源原样放行，不写任何 CORS 头；
// 预检请求在此处以 204 结束，不进入限流。
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = defaultCORSMethods
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = defaultCORSHeaders
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultCORSMaxAge
	}

	matcher := newOriginMatcher(cfg.AllowOrigins)
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)
	wildcard := matcher.any && !cfg.AllowCredentials

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !matcher.allows(origin) {
			c.Next()
			return
		}

		h := c.Writer.Header()
		if wildcard {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if expose != "" {
			h.Set("Access-Control-Expose-Headers", expose)
		}
		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
