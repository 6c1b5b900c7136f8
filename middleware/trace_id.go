package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceIDKeyDefault 与 logger 的 trace_id_key 默认值一致
	TraceIDKeyDefault = "trace_id"
	// TraceIDHeaderDefault 请求与响应头
	TraceIDHeaderDefault = "X-Trace-ID"

	maxInboundTraceIDLen = 128
)

// TraceConfig TraceID 中间件配置
type TraceConfig struct {
	TraceIDKey           string
	TraceIDHeader        string
	EnableResponseHeader bool
	// Generator 默认 UUIDv4
	Generator func() string
}

// DefaultTraceConfig 默认配置
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		TraceIDKey:           TraceIDKeyDefault,
		TraceIDHeader:        TraceIDHeaderDefault,
		EnableResponseHeader: true,
		Generator:            uuid.NewString,
	}
}

// validInboundTraceID 只接受长度受限的 [A-Za-z0-9._-]，其余重新生成，避免日志注入
func validInboundTraceID(id string) bool {
	if id == "" || len(id) > maxInboundTraceIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch ch := id[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.':
		default:
			return false
		}
	}
	return true
}

// TraceID 确定请求的 TraceID 并写入 gin.Context、context.Context 与响应头
//
// 来源优先级：otelgin 开启的 span > 合法的 X-Trace-ID > Generator。
func TraceID(cfg TraceConfig) gin.HandlerFunc {
	d := DefaultTraceConfig()
	if cfg.TraceIDKey == "" {
		cfg.TraceIDKey = d.TraceIDKey
	}
	if cfg.TraceIDHeader == "" {
		cfg.TraceIDHeader = d.TraceIDHeader
	}
	if cfg.Generator == nil {
		cfg.Generator = d.Generator
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var id string
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			id = sc.TraceID().String()
		} else {
			if id = c.GetHeader(cfg.TraceIDHeader); !validInboundTraceID(id) {
				id = cfg.Generator()
			}
			c.Request = c.Request.WithContext(context.WithValue(ctx, cfg.TraceIDKey, id))
		}

		c.Set(cfg.TraceIDKey, id)
		if cfg.EnableResponseHeader {
			c.Header(cfg.TraceIDHeader, id)
		}
		c.Next()
	}
}

// GetTraceID 读取默认 key 下的 TraceID
func GetTraceID(c *gin.Context) string {
	return GetTraceIDWithKey(c, TraceIDKeyDefault)
}

// GetTraceIDWithKey 读取指定 key 下的 TraceID，不存在返回空串
func GetTraceIDWithKey(c *gin.Context, key string) string {
	return c.GetString(key)
}
