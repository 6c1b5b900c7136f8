package redis

import (
	"context"
	"errors"

	"github.com/KOMKZ/yogan-shield/health"
)

var errNoManager = errors.New("redis manager not initialized")

// HealthChecker 只会报 degraded：redis 不可达时限流放行、缓存退化为未命中，服务仍可用
type HealthChecker struct {
	manager *Manager
}

func NewHealthChecker(manager *Manager) *HealthChecker {
	return &HealthChecker{manager: manager}
}

func (*HealthChecker) Name() string { return "redis" }

func (h *HealthChecker) Check(ctx context.Context) error {
	err := errNoManager
	if h.manager != nil {
		err = h.manager.Ping(ctx)
	}
	if err != nil {
		return health.Degraded(err)
	}
	return nil
}
