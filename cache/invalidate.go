package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// InvalidateByTags deletes every entry carrying any of tags, then the tag sets.
// Cost is proportional to the tag sets, never to the key space. Tags fan out over
// the worker pool. Returns the number of entries removed.
func (m *Manager) InvalidateByTags(ctx context.Context, tenantID string, tags ...string) int64 {
	if err := ValidateScope(tenantID); err != nil {
		m.log.WarnCtx(ctx, "cache invalidation rejected", zap.String("tenant", tenantID), zap.Error(err))
		return 0
	}

	var (
		total int64
		wg    sync.WaitGroup
	)

	for _, tag := range tags {
		if tag == "" {
			continue
		}
		tagKey := m.keys.tag(tenantID, tag)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			atomic.AddInt64(&total, m.invalidateTag(ctx, tagKey))
		}
		if err := m.pool.Submit(task); err != nil {
			// pool closed or saturated in nonblocking mode: do it inline
			task()
		}
	}
	wg.Wait()

	m.log.InfoCtx(ctx, "cache invalidated by tags",
		zap.String("tenant", Scope(tenantID)),
		zap.Strings("tags", tags),
		zap.Int64("removed", total))
	if m.metrics != nil {
		m.metrics.RecordInvalidation(ctx, "tag", total)
	}
	return total
}

func (m *Manager) invalidateTag(ctx context.Context, tagKey string) int64 {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	removed, err := m.store.InvalidateTag(storeCtx, tagKey)
	if err != nil {
		m.logStoreError(ctx, "cache tag invalidation failed", err, zap.String("tag", tagKey))
		return 0
	}
	return removed
}

// InvalidateByTenant deletes every entry of one tenant with an incremental SCAN
func (m *Manager) InvalidateByTenant(ctx context.Context, tenantID string) int64 {
	if err := ValidateScope(tenantID); err != nil {
		m.log.WarnCtx(ctx, "cache invalidation rejected", zap.String("tenant", tenantID), zap.Error(err))
		return 0
	}
	return m.scanInvalidate(ctx, "tenant", m.keys.tenantPattern(tenantID))
}

// InvalidateByNamespace deletes one namespace of one tenant with an incremental SCAN
func (m *Manager) InvalidateByNamespace(ctx context.Context, namespace, tenantID string) int64 {
	if err := validateSegments(tenantID, namespace); err != nil {
		m.log.WarnCtx(ctx, "cache invalidation rejected",
			zap.String("tenant", tenantID),
			zap.String("namespace", namespace),
			zap.Error(err))
		return 0
	}
	return m.scanInvalidate(ctx, "namespace", m.keys.namespacePattern(namespace, tenantID))
}

// scanInvalidate bounds each SCAN and DEL round trip by StoreTimeout; the whole
// walk is bounded by ctx
func (m *Manager) scanInvalidate(ctx context.Context, kind, pattern string) int64 {
	n, err := m.store.ScanDelete(ctx, pattern, m.cfg.ScanCount, m.cfg.StoreTimeout)
	if err != nil {
		m.logStoreError(ctx, "cache scan invalidation failed", err,
			zap.String("pattern", pattern),
			zap.Int64("removed", n))
	} else {
		m.log.InfoCtx(ctx, "cache invalidated by "+kind,
			zap.String("pattern", pattern),
			zap.Int64("removed", n))
	}
	if m.metrics != nil {
		m.metrics.RecordInvalidation(ctx, kind, n)
	}
	return n
}
