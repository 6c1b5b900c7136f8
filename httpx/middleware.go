package httpx

import (
	"context"

	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const errorLoggingKey = "httpx:error_logging"

// errorLogging is ErrorLoggingConfig preprocessed once per engine
type errorLogging struct {
	enable    bool
	ignore    map[int]struct{}
	fullChain bool
	level     string
	log       *logger.CtxZapLogger
}

var disabledErrorLogging = errorLogging{fullChain: true, level: "error"}

func newErrorLogging(cfg ErrorLoggingConfig, log *logger.CtxZapLogger) errorLogging {
	ignore := make(map[int]struct{}, len(cfg.IgnoreHTTPStatus))
	for _, status := range cfg.IgnoreHTTPStatus {
		ignore[status] = struct{}{}
	}
	level := cfg.LogLevel
	if level == "" {
		level = "error"
	}
	if log == nil {
		log = logger.GetLogger("httpx")
	}
	return errorLogging{
		enable:    cfg.Enable,
		ignore:    ignore,
		fullChain: cfg.FullErrorChain,
		level:     level,
		log:       log,
	}
}

// logs reports whether an error rendered with status is logged
func (e errorLogging) logs(status int) bool {
	if !e.enable {
		return false
	}
	_, ignored := e.ignore[status]
	return !ignored
}

func (e errorLogging) write(ctx context.Context, msg string, fields ...zap.Field) {
	switch e.level {
	case "warn":
		e.log.WarnCtx(ctx, msg, fields...)
	case "info":
		e.log.InfoCtx(ctx, msg, fields...)
	default:
		e.log.ErrorCtx(ctx, msg, fields...)
	}
}

// ErrorLoggingMiddleware stores the logging policy on the context for HandleError.
// Without it HandleError logs nothing. A nil log uses the "httpx" module logger.
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig, log *logger.CtxZapLogger) gin.HandlerFunc {
	policy := newErrorLogging(cfg, log)
	return func(c *gin.Context) {
		c.Set(errorLoggingKey, policy)
		c.Next()
	}
}

func errorLoggingFrom(c *gin.Context) errorLogging {
	if val, exists := c.Get(errorLoggingKey); exists {
		if policy, ok := val.(errorLogging); ok {
			return policy
		}
	}
	return disabledErrorLogging
}
