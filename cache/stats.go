package cache

import (
	"context"
	"math"
	"strconv"

	"go.uber.org/zap"
)

const (
	statHits   = "hits"
	statMisses = "misses"
)

// Stats fleet-wide cache statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hitRate"` // percent, two decimals
	MemoryUsage string  `json:"memoryUsage"`
	Keys        int64   `json:"keys"`
}

// GetStats reads the shared counters. Store failures leave fields zero and are logged.
func (m *Manager) GetStats(ctx context.Context) Stats {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	var s Stats
	values, err := m.store.Stats(storeCtx, m.cfg.StatsKey)
	if err != nil {
		m.log.WarnCtx(ctx, "cache stats unavailable", zap.Error(err))
	} else {
		s.Hits, _ = strconv.ParseInt(values[statHits], 10, 64)
		s.Misses, _ = strconv.ParseInt(values[statMisses], 10, 64)
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = math.Round(float64(s.Hits)/float64(total)*10000) / 100
	}

	s.MemoryUsage = "unknown"
	if usage, err := m.store.MemoryUsage(storeCtx); err == nil {
		s.MemoryUsage = usage
	} else {
		m.log.DebugCtx(ctx, "cache memory usage unavailable", zap.Error(err))
	}

	if keys, err := m.store.KeyCount(storeCtx); err == nil {
		s.Keys = keys
	}
	return s
}

// ResetStats clears the shared counters
func (m *Manager) ResetStats(ctx context.Context) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.ResetStats(storeCtx, m.cfg.StatsKey); err != nil {
		m.log.WarnCtx(ctx, "cache stats reset failed", zap.Error(err))
	}
}

func (m *Manager) recordHit(ctx context.Context, namespace string, early bool) {
	m.incrStat(ctx, statHits)
	if m.metrics != nil {
		m.metrics.RecordHit(ctx, namespace, early)
	}
}

func (m *Manager) recordMiss(ctx context.Context, namespace string) {
	m.incrStat(ctx, statMisses)
	if m.metrics != nil {
		m.metrics.RecordMiss(ctx, namespace)
	}
}

func (m *Manager) incrStat(ctx context.Context, field string) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.IncrStat(storeCtx, m.cfg.StatsKey, field); err != nil {
		m.log.DebugCtx(ctx, "cache stat increment failed", zap.String("field", field), zap.Error(err))
	}
}
