package breaker

import (
	"context"
	"fmt"
	"strings"
)

// HealthChecker reports unhealthy while any breaker is OPEN
type HealthChecker struct {
	registry *Registry
}

// NewHealthChecker creates the breaker health checker
func NewHealthChecker(registry *Registry) *HealthChecker {
	return &HealthChecker{registry: registry}
}

// Name Check item name
func (h *HealthChecker) Name() string {
	return "circuit_breakers"
}

// Check execution health check
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.registry == nil {
		return nil
	}
	if open := h.registry.Open(); len(open) > 0 {
		return fmt.Errorf("circuit breakers open: %s", strings.Join(open, ", "))
	}
	return nil
}
