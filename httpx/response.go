// Package httpx renders handler results and errors in one envelope format
// and adapts typed handlers to gin.
package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RetryAfterKey LayeredError data key holding a retry hint in whole seconds.
// HandleError moves it to the retryAfter field and the Retry-After header.
const RetryAfterKey = "retryAfter"

const (
	msgInternal = "内部服务器错误"
	msgTimeout  = "请求超时"
)

// Response success envelope; Code is always 0
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// ErrorResponse Error is the status text, Code the business code (or the
// status itself for errors without one)
type ErrorResponse struct {
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	Code       int                    `json:"code"`
	RetryAfter *int                   `json:"retryAfter,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Msg: "success", Data: data})
}

// ErrorJson error body whose code is the HTTP status
func ErrorJson(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: http.StatusText(status), Message: msg, Code: status})
}

func InternalErrorJson(c *gin.Context, msg string) {
	ErrorJson(c, http.StatusInternalServerError, msg)
}

// NoRouteHandler for engine.NoRoute
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ErrorJson(c, http.StatusNotFound, "路由不存在: "+c.Request.Method+" "+c.Request.URL.Path)
	}
}

// NoMethodHandler for engine.NoMethod
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ErrorJson(c, http.StatusMethodNotAllowed, "方法不允许: "+c.Request.Method+" "+c.Request.URL.Path)
	}
}

// AbortWithError HandleError, then stop the chain
func AbortWithError(c *gin.Context, err error) {
	HandleError(c, err)
	c.Abort()
}

// HandleError renders err:
//   - a LayeredError anywhere in the chain keeps its status, code, message and data
//   - a deadline becomes 504
//   - anything else is a 500 that hides the cause
//
// Logging follows the policy installed by ErrorLoggingMiddleware.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	ctx := c.Request.Context()
	policy := errorLoggingFrom(c)

	var le *errcode.LayeredError
	switch {
	case errors.As(err, &le):
		if policy.logs(le.HTTPStatus()) {
			policy.write(ctx, "业务错误", layeredFields(c, le, err, policy.fullChain)...)
		}
		body, retryAfter := layeredBody(le)
		if retryAfter != nil {
			c.Header("Retry-After", strconv.Itoa(*retryAfter))
		}
		c.JSON(le.HTTPStatus(), body)

	case errors.Is(err, context.DeadlineExceeded):
		if policy.logs(http.StatusGatewayTimeout) {
			policy.log.WarnCtx(ctx, "request deadline exceeded", zap.Error(err))
		}
		ErrorJson(c, http.StatusGatewayTimeout, msgTimeout)

	default:
		if policy.logs(http.StatusInternalServerError) {
			policy.log.ErrorCtx(ctx, "general error", zap.Error(err), zap.String("error_chain", err.Error()))
		}
		InternalErrorJson(c, msgInternal)
	}
}

func layeredFields(c *gin.Context, le *errcode.LayeredError, err error, fullChain bool) []zap.Field {
	fields := []zap.Field{
		zap.Int("error_code", le.Code()),
		zap.String("error_msg", le.Message()),
		zap.String("path", c.FullPath()),
	}
	if fullChain {
		fields = append(fields, zap.String("error_chain", le.String()), zap.Error(err))
	}
	return fields
}

// layeredBody lifts an int retryAfter out of the data map
func layeredBody(le *errcode.LayeredError) (ErrorResponse, *int) {
	status := le.HTTPStatus()
	body := ErrorResponse{Error: http.StatusText(status), Message: le.Message(), Code: le.Code()}

	var retryAfter *int
	for k, v := range le.Data() {
		if seconds, ok := v.(int); ok && k == RetryAfterKey {
			retryAfter = &seconds
			continue
		}
		if body.Data == nil {
			body.Data = map[string]interface{}{}
		}
		body.Data[k] = v
	}
	body.RetryAfter = retryAfter
	return body, retryAfter
}
