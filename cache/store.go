package cache

import (
	"context"
	"time"
)

// Store is the narrow slice of the coordination store the cache needs.
// Keys are passed fully built; the store adds no prefix of its own.
type Store interface {
	// Name Returns the storage backend name
	Name() string

	// GetWithTTL returns the value and its remaining lifetime, ErrCacheMiss when absent
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error)

	// SetWithTags writes the value and adds key to every tag set in one transaction.
	// Tag sets get at least tagTTL; an existing longer expiry is kept.
	SetWithTags(ctx context.Context, key string, value []byte, ttl time.Duration, tagKeys []string, tagTTL time.Duration) error

	// InvalidateTag deletes every member of a tag set and the set itself in one
	// atomic step, returning how many members existed
	InvalidateTag(ctx context.Context, tagKey string) (int64, error)

	// Delete removes keys and returns how many existed
	Delete(ctx context.Context, keys ...string) (int64, error)

	// ScanDelete walks MATCH pattern with a cursor on every master, deleting batch
	// by batch. step bounds each round trip; ctx bounds the whole walk.
	ScanDelete(ctx context.Context, pattern string, count int64, step time.Duration) (int64, error)

	// IncrStat bumps one counter in the stats hash
	IncrStat(ctx context.Context, statsKey, field string) error

	// Stats reads the stats hash
	Stats(ctx context.Context, statsKey string) (map[string]string, error)

	// ResetStats drops the stats hash
	ResetStats(ctx context.Context, statsKey string) error

	// MemoryUsage human readable memory used by the store
	MemoryUsage(ctx context.Context) (string, error)

	// KeyCount number of keys in the store
	KeyCount(ctx context.Context) (int64, error)
}
