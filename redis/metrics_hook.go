package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// commandHook redis.Hook，把每条命令的耗时与结果交给 RedisMetrics
type commandHook struct {
	metrics  *RedisMetrics
	instance string
	clock    func() time.Time
}

func newCommandHook(metrics *RedisMetrics, instance string) commandHook {
	return commandHook{metrics: metrics, instance: instance, clock: time.Now}
}

func (commandHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h commandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		began := h.clock()
		err := next(ctx, cmd)
		h.metrics.RecordCommand(ctx, h.instance, cmd.Name(), h.clock().Sub(began), isCommandError(err))
		return err
	}
}

// ProcessPipelineHook 缓存读写走 pipeline，往返耗时按命令数均分
func (h commandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		began := h.clock()
		err := next(ctx, cmds)
		if n := len(cmds); n > 0 {
			each := h.clock().Sub(began) / time.Duration(n)
			for _, cmd := range cmds {
				h.metrics.RecordCommand(ctx, h.instance, cmd.Name(), each, isCommandError(cmd.Err()))
			}
		}
		return err
	}
}

// redis.Nil 是未命中，不算失败
func isCommandError(err error) bool {
	return err != nil && !errors.Is(err, redis.Nil)
}
