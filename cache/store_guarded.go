package cache

import (
	"context"
	"errors"
	"time"

	"github.com/KOMKZ/yogan-shield/breaker"
)

// guardedStore runs the data path of a Store under a circuit breaker. While the
// circuit is open every call fails fast with breaker.ErrCircuitOpen, which the
// manager treats like any other store failure: a miss or a logged no-op.
type guardedStore struct {
	Store
	cb *breaker.CircuitBreaker
}

func newGuardedStore(store Store, cb *breaker.CircuitBreaker) *guardedStore {
	return &guardedStore{Store: store, cb: cb}
}

type ttlValue struct {
	data []byte
	ttl  time.Duration
	hit  bool
}

// GetWithTTL a miss is a healthy answer and never counts against the store
func (s *guardedStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	v, err := breaker.Do(ctx, s.cb, func(ctx context.Context) (ttlValue, error) {
		data, ttl, err := s.Store.GetWithTTL(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			return ttlValue{}, nil
		}
		if err != nil {
			return ttlValue{}, err
		}
		return ttlValue{data: data, ttl: ttl, hit: true}, nil
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	if !v.hit {
		return nil, 0, ErrCacheMiss
	}
	return v.data, v.ttl, nil
}

func (s *guardedStore) SetWithTags(ctx context.Context, key string, value []byte, ttl time.Duration, tagKeys []string, tagTTL time.Duration) error {
	_, err := breaker.Do(ctx, s.cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Store.SetWithTags(ctx, key, value, ttl, tagKeys, tagTTL)
	}, nil)
	return err
}

func (s *guardedStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	return breaker.Do(ctx, s.cb, func(ctx context.Context) (int64, error) {
		return s.Store.Delete(ctx, keys...)
	}, nil)
}

func (s *guardedStore) InvalidateTag(ctx context.Context, tagKey string) (int64, error) {
	return breaker.Do(ctx, s.cb, func(ctx context.Context) (int64, error) {
		return s.Store.InvalidateTag(ctx, tagKey)
	}, nil)
}

func (s *guardedStore) ScanDelete(ctx context.Context, pattern string, count int64, step time.Duration) (int64, error) {
	return breaker.Do(ctx, s.cb, func(ctx context.Context) (int64, error) {
		return s.Store.ScanDelete(ctx, pattern, count, step)
	}, nil)
}
