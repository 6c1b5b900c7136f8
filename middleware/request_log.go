package middleware

import (
	"net/http"
	"time"

	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestLogMessage = "HTTP 请求"

// RequestLogConfig 访问日志配置
type RequestLogConfig struct {
	// Logger 为空时使用 "yogan" 模块日志
	Logger    *logger.CtxZapLogger
	SkipPaths []string
}

func DefaultRequestLogConfig() RequestLogConfig {
	return RequestLogConfig{SkipPaths: []string{}}
}

// RequestLog 替代 gin.Logger() 的结构化访问日志
func RequestLog() gin.HandlerFunc {
	return RequestLogWithConfig(DefaultRequestLogConfig())
}

// RequestLogWithConfig 每个请求结束后写一条日志，级别随状态码变化
//
// 被降载或限流拒绝的请求是预期行为，只记 Warn；其余 5xx 记 Error。
func RequestLogWithConfig(cfg RequestLogConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger("yogan")
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		begin := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := requestFields(c, status, time.Since(begin))

		ctx := c.Request.Context()
		switch accessLevel(status, c.IsAborted()) {
		case zapcore.ErrorLevel:
			log.ErrorCtx(ctx, requestLogMessage, fields...)
		case zapcore.WarnLevel:
			log.WarnCtx(ctx, requestLogMessage, fields...)
		default:
			log.InfoCtx(ctx, requestLogMessage, fields...)
		}
	}
}

func requestFields(c *gin.Context, status int, latency time.Duration) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	fields = append(fields,
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("client_ip", ClientIP(c)),
		zap.Int("body_size", c.Writer.Size()),
	)
	if tenant := TenantID(c); tenant != "" {
		fields = append(fields, zap.String("tenant_id", tenant))
	}
	if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
		fields = append(fields, zap.String("error", errs.String()))
	}
	return fields
}

func accessLevel(status int, aborted bool) zapcore.Level {
	switch {
	case status == http.StatusServiceUnavailable && aborted:
		return zapcore.WarnLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
