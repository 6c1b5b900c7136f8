package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy returns the wait after the given failed attempt (1-based)
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffFunc adapts a function to BackoffStrategy
type BackoffFunc func(attempt int) time.Duration

// Next implements BackoffStrategy
func (f BackoffFunc) Next(attempt int) time.Duration { return f(attempt) }

type exponentialBackoff struct {
	base       time.Duration
	multiplier float64
	maxDelay   time.Duration
	jitter     float64
}

// ExponentialBackoff waits base * 2^(attempt-1), capped at 30s, with 20% jitter
func ExponentialBackoff(base time.Duration) BackoffStrategy {
	return &exponentialBackoff{base: base, multiplier: 2, maxDelay: 30 * time.Second, jitter: 0.2}
}

func (b *exponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.base) * math.Pow(b.multiplier, float64(attempt-1))
	if d > float64(b.maxDelay) {
		d = float64(b.maxDelay)
	}
	if b.jitter > 0 {
		d += d * b.jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// ConstantBackoff always waits d
func ConstantBackoff(d time.Duration) BackoffStrategy {
	return BackoffFunc(func(int) time.Duration { return d })
}
