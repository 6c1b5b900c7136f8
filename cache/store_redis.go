package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 缓存存储
type RedisStore struct {
	name   string
	client redis.UniversalClient
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(name string, client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		name:   name,
		client: client,
	}
}

// Name 返回存储名称
func (s *RedisStore) Name() string {
	return s.name
}

// GetWithTTL 获取缓存值及剩余 TTL (GET + PTTL, one round trip)
func (s *RedisStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	var get *redis.StringCmd
	var pttl *redis.DurationCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, ErrStoreGet.Wrap(err)
	}

	data, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, ErrCacheMiss
		}
		return nil, 0, ErrStoreGet.Wrap(err)
	}

	ttl, err := pttl.Result()
	if err != nil {
		return nil, 0, ErrStoreGet.Wrap(err)
	}
	// -1 no expiry, -2 gone between GET and PTTL
	if ttl < 0 {
		ttl = 0
	}
	return data, ttl, nil
}

// SetWithTags 设置缓存值并登记标签
func (s *RedisStore) SetWithTags(ctx context.Context, key string, value []byte, ttl time.Duration, tagKeys []string, tagTTL time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, tagKey := range tagKeys {
			pipe.SAdd(ctx, tagKey, key)
			// NX covers a fresh set, GT only ever extends an existing one
			pipe.ExpireNX(ctx, tagKey, tagTTL)
			pipe.ExpireGT(ctx, tagKey, tagTTL)
		}
		return nil
	})
	if err != nil {
		return ErrStoreSet.Wrap(err)
	}
	return nil
}

// invalidateTagScript 读成员、删成员、删集合在一个脚本里完成，期间插入的
// SetWithTags 要么在脚本前（被删），要么在脚本后（留在新集合里）
var invalidateTagScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local removed = 0
for i = 1, #members do
  removed = removed + redis.call('DEL', members[i])
end
redis.call('DEL', KEYS[1])
return removed
`)

// InvalidateTag 原子地删除标签成员与标签集合
func (s *RedisStore) InvalidateTag(ctx context.Context, tagKey string) (int64, error) {
	n, err := invalidateTagScript.Run(ctx, s.client, []string{tagKey}).Int64()
	if err != nil {
		return 0, ErrStoreDelete.Wrap(err)
	}
	return n, nil
}

// Delete 删除缓存，逐 key 走 pipeline，集群下不会跨 slot
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	n, err := deleteEach(ctx, s.client, keys)
	if err != nil {
		return n, ErrStoreDelete.Wrap(err)
	}
	return n, nil
}

func deleteEach(ctx context.Context, c redis.Cmdable, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cmds, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		return nil
	})
	var n int64
	for _, cmd := range cmds {
		if del, ok := cmd.(*redis.IntCmd); ok {
			n += del.Val()
		}
	}
	return n, err
}

// ScanDelete 按模式删除，使用 SCAN 避免阻塞；集群下遍历每个 master
func (s *RedisStore) ScanDelete(ctx context.Context, pattern string, count int64, step time.Duration) (int64, error) {
	var deleted atomic.Int64
	err := s.forEachNode(ctx, func(ctx context.Context, node redis.Cmdable) error {
		n, err := scanDelete(ctx, node, pattern, count, step)
		deleted.Add(n)
		return err
	})
	if err != nil {
		return deleted.Load(), ErrStoreDelete.Wrap(err)
	}
	return deleted.Load(), nil
}

func scanDelete(ctx context.Context, node redis.Cmdable, pattern string, count int64, step time.Duration) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		var batch []string
		err := within(ctx, step, func(ctx context.Context) (err error) {
			batch, cursor, err = node.Scan(ctx, cursor, pattern, count).Result()
			return err
		})
		if err != nil {
			return deleted, err
		}
		if len(batch) > 0 {
			err = within(ctx, step, func(ctx context.Context) error {
				n, err := deleteEach(ctx, node, batch)
				deleted += n
				return err
			})
			if err != nil {
				return deleted, err
			}
		}
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// within 单次往返的超时
func within(ctx context.Context, step time.Duration, fn func(ctx context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, step)
	defer cancel()
	return fn(stepCtx)
}

// forEachNode 集群下对每个 master 执行 fn，单机直接执行
func (s *RedisStore) forEachNode(ctx context.Context, fn func(ctx context.Context, node redis.Cmdable) error) error {
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		return cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return fn(ctx, node)
		})
	}
	return fn(ctx, s.client)
}

// IncrStat 统计计数 +1
func (s *RedisStore) IncrStat(ctx context.Context, statsKey, field string) error {
	if err := s.client.HIncrBy(ctx, statsKey, field, 1).Err(); err != nil {
		return ErrStoreStats.Wrap(err)
	}
	return nil
}

// Stats 读取统计
func (s *RedisStore) Stats(ctx context.Context, statsKey string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return nil, ErrStoreStats.Wrap(err)
	}
	return values, nil
}

// ResetStats 清空统计
func (s *RedisStore) ResetStats(ctx context.Context, statsKey string) error {
	if err := s.client.Del(ctx, statsKey).Err(); err != nil {
		return ErrStoreStats.Wrap(err)
	}
	return nil
}

// MemoryUsage reads used_memory_human from INFO memory; a cluster reports the
// sum of used_memory over its masters
func (s *RedisStore) MemoryUsage(ctx context.Context) (string, error) {
	if _, ok := s.client.(*redis.ClusterClient); !ok {
		info, err := s.client.Info(ctx, "memory").Result()
		if err != nil {
			return "", ErrStoreStats.Wrap(err)
		}
		return parseInfoField(info, "used_memory_human")
	}

	var total atomic.Int64
	err := s.forEachNode(ctx, func(ctx context.Context, node redis.Cmdable) error {
		info, err := node.Info(ctx, "memory").Result()
		if err != nil {
			return err
		}
		raw, err := parseInfoField(info, "used_memory")
		if err != nil {
			return err
		}
		used, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		total.Add(used)
		return nil
	})
	if err != nil {
		return "", ErrStoreStats.Wrap(err)
	}
	return humanBytes(total.Load()), nil
}

// KeyCount DBSIZE, summed over masters in a cluster
func (s *RedisStore) KeyCount(ctx context.Context) (int64, error) {
	var total atomic.Int64
	err := s.forEachNode(ctx, func(ctx context.Context, node redis.Cmdable) error {
		n, err := node.DBSize(ctx).Result()
		total.Add(n)
		return err
	})
	if err != nil {
		return 0, ErrStoreStats.Wrap(err)
	}
	return total.Load(), nil
}

// humanBytes 与 used_memory_human 相同的写法
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + "B"
	}
	v, suffix := float64(n), "B"
	for _, s := range []string{"K", "M", "G", "T"} {
		if v < unit {
			break
		}
		v, suffix = v/unit, s
	}
	return strconv.FormatFloat(v, 'f', 2, 64) + suffix
}

func parseInfoField(info, field string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		if value, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), field+":"); ok {
			return value, nil
		}
	}
	return "", ErrStoreStats.Wrap(fmt.Errorf("%s not found in INFO", field))
}
