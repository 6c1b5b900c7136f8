package middleware

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/KOMKZ/yogan-shield/health"
)

// HealthCheckHandler /health 系列端点
type HealthCheckHandler struct {
	aggregator *health.Aggregator
}

// NewHealthCheckHandler 创建 Handler
func NewHealthCheckHandler(aggregator *health.Aggregator) *HealthCheckHandler {
	return &HealthCheckHandler{aggregator: aggregator}
}

// ReadinessResponse /health/readiness 响应体
type ReadinessResponse struct {
	Status health.Status `json:"status"`
	// Failing 非健康的检查项名称
	Failing []string `json:"failing,omitempty"`
}

// httpStatus 降级仍返回 200：限流 fail-open，缓存退化为直算
func httpStatus(s health.Status) int {
	if s == health.StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Handle GET /health 返回全部检查项明细
func (h *HealthCheckHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := h.aggregator.Check(c.Request.Context())
		c.Header("Cache-Control", "no-store")
		c.JSON(httpStatus(resp.Status), resp)
	}
}

// HandleLiveness 进程存活即可，不访问依赖
func (h *HealthCheckHandler) HandleLiveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// HandleReadiness 与 /health 同样的判定，只返回摘要
func (h *HealthCheckHandler) HandleReadiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := h.aggregator.Check(c.Request.Context())

		body := ReadinessResponse{Status: resp.Status}
		for name, r := range resp.Checks {
			if r.Status != health.StatusHealthy {
				body.Failing = append(body.Failing, name)
			}
		}
		sort.Strings(body.Failing)

		c.Header("Cache-Control", "no-store")
		c.JSON(httpStatus(resp.Status), body)
	}
}

// RegisterHealthRoutes 注册 /health、/health/liveness、/health/readiness；aggregator 为 nil 时不注册
func RegisterHealthRoutes(router gin.IRouter, aggregator *health.Aggregator) {
	if aggregator == nil {
		return
	}
	h := NewHealthCheckHandler(aggregator)
	router.GET("/health", h.Handle())
	router.GET("/health/liveness", h.HandleLiveness())
	router.GET("/health/readiness", h.HandleReadiness())
}
