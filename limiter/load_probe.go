package limiter

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// LoadProbe reports the coordination store's cluster-wide throughput
type LoadProbe interface {
	OpsPerSecond(ctx context.Context) (float64, error)
}

// infoClient is the slice of the redis client the probe uses
type infoClient interface {
	Info(ctx context.Context, section ...string) *redis.StringCmd
}

// RedisLoadProbe reads instantaneous_ops_per_sec from INFO stats
type RedisLoadProbe struct {
	client infoClient
}

// NewRedisLoadProbe creates a probe backed by INFO stats
func NewRedisLoadProbe(client infoClient) *RedisLoadProbe {
	return &RedisLoadProbe{client: client}
}

// OpsPerSecond returns the server's instantaneous ops/s
func (p *RedisLoadProbe) OpsPerSecond(ctx context.Context) (float64, error) {
	info, err := p.client.Info(ctx, "stats").Result()
	if err != nil {
		return 0, err
	}
	return parseOpsPerSecond(info)
}

func parseOpsPerSecond(info string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		value, ok := strings.CutPrefix(line, "instantaneous_ops_per_sec:")
		if !ok {
			continue
		}
		return strconv.ParseFloat(value, 64)
	}
	return 0, fmt.Errorf("instantaneous_ops_per_sec not found in INFO stats")
}

// StaticLoadProbe returns a fixed value, for tests and for disabling the signal
type StaticLoadProbe struct {
	Ops float64
	Err error
}

// OpsPerSecond returns the configured value
func (p StaticLoadProbe) OpsPerSecond(context.Context) (float64, error) {
	return p.Ops, p.Err
}
