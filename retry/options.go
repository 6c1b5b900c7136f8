package retry

import "time"

type config struct {
	maxAttempts int
	backoff     BackoffStrategy
	retryIf     func(error) bool
	onRetry     func(attempt int, err error)
}

// 3 次，100ms 起指数退避，任何错误都重试
func defaultConfig() *config {
	return &config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(100 * time.Millisecond),
		retryIf:     func(error) bool { return true },
	}
}

// Option 配置 Do
type Option func(*config)

// MaxAttempts 总次数，含首次；n<=0 忽略
func MaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func Backoff(b BackoffStrategy) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// RetryIf 返回 false 的错误不再重试
func RetryIf(fn func(error) bool) Option {
	return func(c *config) {
		if fn != nil {
			c.retryIf = fn
		}
	}
}

// OnRetry 每次等待前调用
func OnRetry(fn func(attempt int, err error)) Option {
	return func(c *config) { c.onRetry = fn }
}
