package limiter

import (
	"context"
	"time"
)

// Store is the coordination store surface the limiter needs.
//
// AtomicSlidingWindowIncrement prunes entries older than now-window, then admits
// one entry at now when fewer than limit remain. The prune, count and add happen as
// one atomic step. The returned value is the position of this request in the window:
// the new count when admitted, count+1 when the window was already full. A result
// greater than limit therefore means "not admitted".
type Store interface {
	AtomicSlidingWindowIncrement(ctx context.Context, key string, now time.Time, window time.Duration, limit int64) (int64, error)
}
