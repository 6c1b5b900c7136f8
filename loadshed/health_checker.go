package loadshed

import (
	"context"
	"fmt"
)

// HealthChecker reports unhealthy at CRITICAL load
type HealthChecker struct {
	handler *Handler
}

// NewHealthChecker creates the load health checker
func NewHealthChecker(handler *Handler) *HealthChecker {
	return &HealthChecker{handler: handler}
}

// Name Check item name
func (h *HealthChecker) Name() string {
	return "load"
}

// Check execution health check
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.handler == nil {
		return nil
	}
	if level := h.handler.LoadLevel(); level == LevelCritical {
		return fmt.Errorf("load level %s", level)
	}
	return nil
}
