// Package testutil 集成测试辅助：基于 miniredis 启动完整应用，并提供请求构建器
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/KOMKZ/yogan-shield/application"
)

// baseConfig 测试用最小配置：随机端口、关闭请求日志与定时汇报，Redis 指向 miniredis
const baseConfig = `
http:
  host: 127.0.0.1
  port: 0
  mode: test
middleware:
  request_log:
    enable: false
reporter:
  enabled: false
logger:
  level: error
  enable_console: false
redis:
  addr: %s
  max_retries: -1
  connect:
    attempts: 1
    backoff: 1ms
`

// TestServer 运行中的应用及其依赖
type TestServer struct {
	App    *application.Application
	Engine *gin.Engine
	Redis  *miniredis.Miniredis
}

// NewTestServer 写入配置（baseConfig + envYAML 作为 test.yaml 覆盖），
// 走与生产一致的 RunNonBlocking 启动流程；测试结束时自动关闭
func NewTestServer(t *testing.T, envYAML string, routers ...application.Router) (*TestServer, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("SHIELD_ENV", "test")

	mr := miniredis.RunT(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(fmt.Sprintf(baseConfig, mr.Addr())), 0o644); err != nil {
		return nil, err
	}
	if envYAML != "" {
		if err := os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(envYAML), 0o644); err != nil {
			return nil, err
		}
	}

	app, err := application.New(dir, "SHIELD_TEST", nil)
	if err != nil {
		return nil, err
	}
	app.RegisterRoutes(routers...)

	if err := app.RunNonBlocking(); err != nil {
		_ = app.Stop()
		return nil, err
	}
	t.Cleanup(func() { _ = app.Stop() })

	return &TestServer{
		App:    app,
		Engine: app.GetHTTPServer().GetEngine(),
		Redis:  mr,
	}, nil
}

// Do 在应用的 engine 上执行请求
func (ts *TestServer) Do(rb *RequestBuilder) *ResponseHelper {
	return rb.Do(ts.Engine)
}

// URL 真实监听地址上的完整 URL
func (ts *TestServer) URL(path string) string {
	return "http://" + ts.App.GetHTTPServer().Addr() + path
}

// MustNewTestServer 创建测试服务器（失败时终止测试）
func MustNewTestServer(t *testing.T, envYAML string, routers ...application.Router) *TestServer {
	t.Helper()
	server, err := NewTestServer(t, envYAML, routers...)
	if err != nil {
		t.Fatalf("创建测试服务器失败: %v", err)
	}
	return server
}
