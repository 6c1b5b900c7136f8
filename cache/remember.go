package cache

import (
	"context"

	"go.uber.org/zap"
)

// Loader computes a value on a cache miss
type Loader[T any] func(ctx context.Context) (T, error)

// Remember returns the cached value or computes, stores and returns it.
// Concurrent misses for one key inside this process share a single computation.
// A loader error is returned as is and nothing is cached. A tenant or namespace
// that cannot form a key fails with ErrInvalidKey before load runs.
func Remember[T any](ctx context.Context, m *Manager, namespace, identifier string, opts Options, load Loader[T]) (T, error) {
	var cached T
	if err := validateSegments(opts.TenantID, namespace); err != nil {
		return cached, err
	}
	if found, _ := m.Get(ctx, namespace, identifier, opts, &cached); found {
		return cached, nil
	}

	key := m.keys.entry(opts.TenantID, namespace, identifier)
	v, err, shared := m.sf.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		m.Set(ctx, namespace, identifier, value, opts)
		return value, nil
	})
	if shared {
		m.log.DebugCtx(ctx, "cache load shared", zap.String("key", key))
	}

	value, _ := v.(T)
	return value, err
}
