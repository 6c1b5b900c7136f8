package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KOMKZ/yogan-shield/errcode"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	errTestBusy = errcode.New(10, 2, "test", "test.busy", "slow down", http.StatusTooManyRequests)
	errTestGone = errcode.New(10, 3, "test", "test.gone", "gone", http.StatusGone)
	errTestDown = errcode.New(71, 2, "analytics", "error.analytics.unavailable", "服务暂不可用", http.StatusServiceUnavailable)
)

func serve(t *testing.T, method string, register func(*gin.Engine)) *httptest.ResponseRecorder {
	t.Helper()
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	register(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, "/x", nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestOkJson(t *testing.T) {
	w := serve(t, http.MethodGet, func(e *gin.Engine) {
		e.GET("/x", func(c *gin.Context) { OkJson(c, gin.H{"total": 7}) })
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"msg":"success","data":{"total":7}}`, w.Body.String())
}

func TestErrorBodies(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		register func(*gin.Engine)
		status   int
		message  string
	}{
		{"error json", http.MethodGet, func(e *gin.Engine) {
			e.GET("/x", func(c *gin.Context) { ErrorJson(c, http.StatusConflict, "already invalidating") })
		}, http.StatusConflict, "already invalidating"},
		{"internal", http.MethodGet, func(e *gin.Engine) {
			e.GET("/x", func(c *gin.Context) { InternalErrorJson(c, msgInternal) })
		}, http.StatusInternalServerError, msgInternal},
		{"no route", http.MethodGet, func(e *gin.Engine) {
			e.NoRoute(NoRouteHandler())
		}, http.StatusNotFound, "路由不存在: GET /x"},
		{"no method", http.MethodPost, func(e *gin.Engine) {
			e.NoMethod(NoMethodHandler())
			e.GET("/x", func(c *gin.Context) {})
		}, http.StatusMethodNotAllowed, "方法不允许: POST /x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, tt.method, tt.register)
			require.Equal(t, tt.status, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, http.StatusText(tt.status), resp.Error)
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Nil(t, resp.RetryAfter)
		})
	}
}

func TestHandleError_Rendering(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       int
		message    string
		retryAfter string
		data       map[string]interface{}
	}{
		{"layered", errcode.New(10, 1, "test", "test.error", "参数错误", http.StatusBadRequest),
			http.StatusBadRequest, 100001, "参数错误", "", nil},
		{"wrapped with retry hint", fmt.Errorf("limiter: %w", errTestBusy.WithData(RetryAfterKey, 42).WithData("limit", 3)),
			http.StatusTooManyRequests, 100002, "slow down", "42", map[string]interface{}{"limit": float64(3)}},
		{"non-int retry hint stays data", errTestBusy.WithData(RetryAfterKey, "soon"),
			http.StatusTooManyRequests, 100002, "slow down", "", map[string]interface{}{RetryAfterKey: "soon"}},
		{"deadline", fmt.Errorf("compute: %w", context.DeadlineExceeded),
			http.StatusGatewayTimeout, http.StatusGatewayTimeout, msgTimeout, "", nil},
		{"unknown hides cause", errors.New("pq: relation missing"),
			http.StatusInternalServerError, http.StatusInternalServerError, msgInternal, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, http.MethodGet, func(e *gin.Engine) {
				e.GET("/x", func(c *gin.Context) { HandleError(c, tt.err) })
			})

			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.data, resp.Data)
			if tt.retryAfter != "" {
				require.NotNil(t, resp.RetryAfter)
				assert.Equal(t, tt.retryAfter, fmt.Sprint(*resp.RetryAfter))
			}
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestHandleError_Nil(t *testing.T) {
	w := serve(t, http.MethodGet, func(e *gin.Engine) {
		e.GET("/x", func(c *gin.Context) { HandleError(c, nil) })
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestAbortWithError_StopsChain(t *testing.T) {
	reached := false
	w := serve(t, http.MethodGet, func(e *gin.Engine) {
		e.GET("/x",
			func(c *gin.Context) { AbortWithError(c, errTestGone) },
			func(c *gin.Context) { reached = true })
	})

	assert.Equal(t, http.StatusGone, w.Code)
	assert.False(t, reached)
}

func TestHandleError_LoggingPolicy(t *testing.T) {
	cause := errors.New("redis: connection refused")

	tests := []struct {
		name  string
		cfg   ErrorLoggingConfig
		err   error
		level zapcore.Level
		logs  int
		chain bool
	}{
		{"no middleware config", ErrorLoggingConfig{}, errTestDown, zapcore.ErrorLevel, 0, false},
		{"chain at error", ErrorLoggingConfig{Enable: true, FullErrorChain: true, LogLevel: "error"}, errTestDown.Wrap(cause), zapcore.ErrorLevel, 1, true},
		{"warn", ErrorLoggingConfig{Enable: true, LogLevel: "warn"}, errTestDown, zapcore.WarnLevel, 1, false},
		{"info", ErrorLoggingConfig{Enable: true, LogLevel: "info"}, errTestDown, zapcore.InfoLevel, 1, false},
		{"ignored status", ErrorLoggingConfig{Enable: true, IgnoreHTTPStatus: []int{503}}, errTestDown, zapcore.ErrorLevel, 0, false},
		{"unknown error", ErrorLoggingConfig{Enable: true}, cause, zapcore.ErrorLevel, 1, true},
		{"unknown error ignored", ErrorLoggingConfig{Enable: true, IgnoreHTTPStatus: []int{500}}, cause, zapcore.ErrorLevel, 0, false},
		{"deadline logged at warn", ErrorLoggingConfig{Enable: true}, context.DeadlineExceeded, zapcore.WarnLevel, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.DebugLevel)
			log := logger.New(zap.New(core), "httpx")

			serve(t, http.MethodGet, func(e *gin.Engine) {
				e.Use(ErrorLoggingMiddleware(tt.cfg, log))
				e.GET("/x", func(c *gin.Context) { HandleError(c, tt.err) })
			})

			entries := observed.All()
			require.Len(t, entries, tt.logs)
			if tt.logs == 0 {
				return
			}
			assert.Equal(t, tt.level, entries[0].Level)
			chain, ok := entries[0].ContextMap()["error_chain"]
			assert.Equal(t, tt.chain, ok)
			if tt.chain {
				assert.Contains(t, chain, "connection refused")
			}
		})
	}
}
