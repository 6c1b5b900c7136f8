package application

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CLIApplication 运维命令使用的应用（与 HTTP 服务共用配置与组件，不启动 HTTP）
type CLIApplication struct {
	*BaseApplication
}

// NewCLI 创建 CLI 应用
func NewCLI(configPath, configPrefix string, flags interface{}) (*CLIApplication, error) {
	baseApp, err := NewBase(configPath, configPrefix, flags)
	if err != nil {
		return nil, err
	}
	return &CLIApplication{BaseApplication: baseApp}, nil
}

// OnSetup 注册 Setup 阶段回调（链式调用）
func (c *CLIApplication) OnSetup(fn func(*CLIApplication) error) *CLIApplication {
	c.BaseApplication.OnSetup(func(*BaseApplication) error {
		return fn(c)
	})
	return c
}

// Execute 启动组件、执行 fn，然后无论成功与否都关闭组件
func (c *CLIApplication) Execute(fn func(*CLIApplication) error) error {
	if err := c.Setup(); err != nil {
		c.gracefulShutdown()
		return fmt.Errorf("setup failed: %w", err)
	}

	c.setState(StateRunning)
	c.MustGetLogger().DebugCtx(c.ctx, "CLI application initialized",
		zap.Duration("startup_time", c.GetStartDuration()))

	err := fn(c)
	c.gracefulShutdown()
	return err
}

// CLI 命令通常很快结束，关闭超时固定 5 秒
func (c *CLIApplication) gracefulShutdown() {
	_ = c.BaseApplication.Shutdown(5 * time.Second)
}
