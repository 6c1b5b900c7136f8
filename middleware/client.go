package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderTenantID 租户标识请求头
const HeaderTenantID = "x-tenant-id"

// ClientIP 客户端地址：X-Forwarded-For 第一段，其次 X-Real-IP，最后连接对端地址
//
// 不使用 gin 的 c.ClientIP()：它依赖 trusted proxies 配置，
// 而限流窗口按网关转发的原始客户端计数。
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(c.Request.RemoteAddr)
	}
	return host
}

// TenantID x-tenant-id 请求头（去除空白），缺省为空串
//
// 空租户由各组件自行解释：限流记为 "default"，缓存记为 "global"。
func TenantID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderTenantID))
}
