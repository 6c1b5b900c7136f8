package middleware

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/yogan-shield/component"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var _ component.MetricsProvider = (*HTTPMetrics)(nil)

// HTTPMetricsConfig telemetry.metrics.http 段
type HTTPMetricsConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	RecordRequestSize  bool `mapstructure:"record_request_size"`
	RecordResponseSize bool `mapstructure:"record_response_size"`
}

// 请求的准入结果标签
const (
	outcomeServed      = "served"
	outcomeRateLimited = "rate_limited"
	outcomeShed        = "shed"
)

const unmatchedRoute = "unknown"

type httpInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	// 可选，未开启时为 nil
	requestSize  metric.Int64Histogram
	responseSize metric.Int64Histogram
}

// HTTPMetrics 请求量、耗时与准入结果（served / rate_limited / shed）
type HTTPMetrics struct {
	config HTTPMetricsConfig
	inst   atomic.Pointer[httpInstruments]
}

func NewHTTPMetrics(cfg HTTPMetricsConfig) *HTTPMetrics {
	return &HTTPMetrics{config: cfg}
}

func (m *HTTPMetrics) MetricsName() string    { return "http" }
func (m *HTTPMetrics) IsMetricsEnabled() bool { return m.config.Enabled }
func (m *HTTPMetrics) IsRegistered() bool     { return m.inst.Load() != nil }

// RegisterMetrics 幂等；失败时不留下半注册状态
func (m *HTTPMetrics) RegisterMetrics(meter metric.Meter) error {
	if m.IsRegistered() {
		return nil
	}

	var (
		inst httpInstruments
		err  error
	)
	if inst.requests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP 请求总数"), metric.WithUnit("{request}")); err != nil {
		return err
	}
	if inst.duration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP 请求耗时"), metric.WithUnit("s")); err != nil {
		return err
	}
	if inst.inFlight, err = meter.Int64UpDownCounter("http_requests_in_flight",
		metric.WithDescription("处理中的 HTTP 请求"), metric.WithUnit("{request}")); err != nil {
		return err
	}
	if m.config.RecordRequestSize {
		if inst.requestSize, err = meter.Int64Histogram("http_request_size_bytes",
			metric.WithDescription("HTTP 请求体大小"), metric.WithUnit("By")); err != nil {
			return err
		}
	}
	if m.config.RecordResponseSize {
		if inst.responseSize, err = meter.Int64Histogram("http_response_size_bytes",
			metric.WithDescription("HTTP 响应体大小"), metric.WithUnit("By")); err != nil {
			return err
		}
	}

	m.inst.CompareAndSwap(nil, &inst)
	return nil
}

// Handler 未注册时原样放行。path 标签取路由模板，避免高基数。
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inst := m.inst.Load()
		if inst == nil {
			c.Next()
			return
		}

		began := time.Now()
		ctx := c.Request.Context()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := attribute.String("method", c.Request.Method)
		path := attribute.String("path", route)
		byRoute := metric.WithAttributes(method, path)

		inst.inFlight.Add(ctx, 1)
		defer inst.inFlight.Add(ctx, -1)
		if inst.requestSize != nil && c.Request.ContentLength > 0 {
			inst.requestSize.Record(ctx, c.Request.ContentLength, byRoute)
		}

		c.Next()

		status := c.Writer.Status()
		byResult := metric.WithAttributes(method, path,
			attribute.Int("status_code", status),
			attribute.String("status_class", getStatusClass(status)),
			attribute.String("outcome", admissionOutcome(c, status)))
		inst.requests.Add(ctx, 1, byResult)
		inst.duration.Record(ctx, time.Since(began).Seconds(), byResult)

		if size := c.Writer.Size(); inst.responseSize != nil && size > 0 {
			inst.responseSize.Record(ctx, int64(size), byRoute)
		}
	}
}

// admissionOutcome 只有中间件中止的 429/503 才算拒绝；handler 自己返回的不算
func admissionOutcome(c *gin.Context, status int) string {
	if !c.IsAborted() {
		return outcomeServed
	}
	switch status {
	case http.StatusTooManyRequests:
		return outcomeRateLimited
	case http.StatusServiceUnavailable:
		return outcomeShed
	default:
		return outcomeServed
	}
}

func getStatusClass(status int) string {
	if status < 200 || status > 599 {
		return "unknown"
	}
	return string(rune('0'+status/100)) + "xx"
}
