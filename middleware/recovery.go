package middleware

import (
	"errors"
	"net/http"
	"syscall"

	"github.com/KOMKZ/yogan-shield/httpx"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const panicMessage = "Panic recovered"

// Recovery 替代 gin.Recovery()：panic 写日志并返回统一的 500 错误体，
// panic 值与堆栈只出现在日志里。
//
// 需挂在 LoadShedding 之前，这样 panic 请求仍会被计为一次失败。
func Recovery(log *logger.CtxZapLogger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetLogger("gin-error")
	}
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			// net/http 用它静默中断响应
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			brokenConn := isBrokenConn(rec)
			log.ErrorCtx(c.Request.Context(), panicMessage,
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", ClientIP(c)),
				zap.Bool("broken_conn", brokenConn),
				zap.Stack("stack"),
			)

			if brokenConn {
				_ = c.Error(rec.(error))
				c.Abort()
				return
			}
			httpx.InternalErrorJson(c, "内部服务器错误")
			c.Abort()
		}()
		c.Next()
	}
}

// 客户端已断开时不再写响应
func isBrokenConn(rec any) bool {
	err, ok := rec.(error)
	return ok && (errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET))
}
