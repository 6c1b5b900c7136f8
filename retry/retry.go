// Package retry 重试执行，直到成功、次数用尽或 ctx 结束
package retry

import (
	"context"
	"time"
)

// Do 首次成功即返回 nil；否则返回 *MultiError，等待期间 ctx 结束则返回 ctx 错误
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	failed := &MultiError{}
	for failed.Attempts < cfg.maxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		failed.Attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		failed.Errors = append(failed.Errors, err)

		if failed.Attempts == cfg.maxAttempts || !cfg.retryIf(err) {
			break
		}
		if cfg.onRetry != nil {
			cfg.onRetry(failed.Attempts, err)
		}

		wait := cfg.backoff.Next(failed.Attempts)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			// 等不到下一次
			failed.Errors = append(failed.Errors, context.DeadlineExceeded)
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return failed
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
