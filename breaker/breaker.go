// Package breaker 提供熔断器功能
//
// 设计理念：
//   - 每个下游依赖一个熔断器，状态仅在本进程内
//   - 连续失败达到阈值后打开，超时后放行试探调用
//   - 熔断器从不静默吞掉错误：要么返回降级结果，要么返回错误
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KOMKZ/yogan-shield/logger"
	"go.uber.org/zap"
)

// Operation is the protected call
type Operation func(ctx context.Context) (any, error)

// Fallback produces a degraded result. err is ErrCircuitOpen when the call was
// short-circuited, otherwise the operation's own error.
type Fallback func(ctx context.Context, err error) (any, error)

// StateChangeListener is notified after every transition, outside the breaker lock
type StateChangeListener func(name string, from, to State)

// Stats is a point-in-time snapshot
type Stats struct {
	Name            string     `json:"name"`
	State           State      `json:"state"`
	Failures        int        `json:"failures"`
	Successes       int        `json:"successes"`
	TotalRequests   int64      `json:"totalRequests"`
	Rejections      int64      `json:"rejections"`
	LastFailureTime *time.Time `json:"lastFailureTime,omitempty"`
	NextAttemptTime *time.Time `json:"nextAttemptTime,omitempty"`
}

// Option configures a CircuitBreaker
type Option func(*CircuitBreaker)

// WithLogger sets the logger
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(cb *CircuitBreaker) {
		if log != nil {
			cb.log = log
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// WithStateChangeListener adds a transition listener
func WithStateChangeListener(fn StateChangeListener) Option {
	return func(cb *CircuitBreaker) {
		if fn != nil {
			cb.listeners = append(cb.listeners, fn)
		}
	}
}

// WithMetrics attaches an OTel metrics provider
func WithMetrics(m *Metrics) Option {
	return func(cb *CircuitBreaker) {
		cb.metrics = m
	}
}

// CircuitBreaker guards one dependency
type CircuitBreaker struct {
	name      string
	cfg       Config
	log       *logger.CtxZapLogger
	now       func() time.Time
	listeners []StateChangeListener
	metrics   *Metrics

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	totalRequests   int64
	rejections      int64
	lastFailureTime time.Time
	nextAttempt     time.Time
}

// New creates a closed breaker. Invalid configuration is fatal.
func New(name string, cfg Config, opts ...Option) (*CircuitBreaker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cb := &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		log:   logger.GetLogger("yogan"),
		now:   time.Now,
		state: StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	if cb.metrics != nil {
		cb.metrics.RegisterStateCallback(name, func() int64 { return int64(cb.State()) })
	}
	return cb, nil
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Config returns the effective configuration
func (cb *CircuitBreaker) Config() Config {
	return cb.cfg
}

// Execute runs op under the breaker.
//
// While OPEN and before the next attempt time op is not invoked; fallback (if any)
// receives ErrCircuitOpen. When op fails the failure is counted and fallback (if any)
// decides the result. An error that is only the caller's own cancellation is
// not counted. Fallback errors propagate to the caller unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation, fallback Fallback) (any, error) {
	if !cb.allow() {
		cb.log.DebugCtx(ctx, "circuit open, call short-circuited", zap.String("breaker", cb.name))
		if cb.metrics != nil {
			cb.metrics.RecordRejection(ctx, cb.name)
		}
		if fallback != nil {
			return fallback(ctx, ErrCircuitOpen)
		}
		return nil, ErrCircuitOpen.WithData("breaker", cb.name)
	}

	start := cb.now()
	result, err := op(ctx)
	elapsed := cb.now().Sub(start)

	if err != nil && callerGone(ctx, err) {
		// 调用方自己放弃了，不代表下游不健康
		cb.log.DebugCtx(ctx, "caller cancelled, outcome not counted",
			zap.String("breaker", cb.name),
			zap.Error(err))
		if fallback != nil {
			return fallback(ctx, err)
		}
		return nil, err
	}

	if err != nil {
		cb.onFailure()
		if cb.metrics != nil {
			cb.metrics.RecordFailure(ctx, cb.name, elapsed)
		}
		if fallback != nil {
			return fallback(ctx, err)
		}
		return nil, err
	}

	cb.onSuccess()
	if cb.metrics != nil {
		cb.metrics.RecordSuccess(ctx, cb.name, elapsed)
	}
	return result, nil
}

// callerGone reports whether err is only the caller's own context ending.
// A deadline set with a distinct cause (a per-call store timeout) still counts.
func callerGone(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return ctxErr != nil && errors.Is(err, ctxErr) && errors.Is(context.Cause(ctx), ctxErr)
}

// Do is the typed form of Execute. fallback may be nil.
func Do[T any](ctx context.Context, cb *CircuitBreaker, op func(ctx context.Context) (T, error), fallback func(ctx context.Context, err error) (T, error)) (T, error) {
	var fb Fallback
	if fallback != nil {
		fb = func(ctx context.Context, err error) (any, error) {
			return fallback(ctx, err)
		}
	}

	result, err := cb.Execute(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	}, fb)

	var zero T
	if result == nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, err
	}
	return typed, err
}

// allow counts the request and decides whether op may run.
// An expired OPEN breaker moves to HALF_OPEN here.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	cb.totalRequests++

	if cb.state != StateOpen {
		cb.mu.Unlock()
		return true
	}
	if cb.now().Before(cb.nextAttempt) {
		cb.rejections++
		cb.mu.Unlock()
		return false
	}

	from := cb.transitionLocked(StateHalfOpen)
	cb.mu.Unlock()
	cb.notify(from, StateHalfOpen)
	return true
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	cb.failures = 0

	if cb.state != StateHalfOpen {
		cb.mu.Unlock()
		return
	}
	cb.successes++
	if cb.successes < cb.cfg.SuccessThreshold {
		cb.mu.Unlock()
		return
	}

	from := cb.transitionLocked(StateClosed)
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	now := cb.now()
	cb.lastFailureTime = now

	switch cb.state {
	case StateHalfOpen:
		from := cb.transitionLocked(StateOpen)
		cb.mu.Unlock()
		cb.notify(from, StateOpen)
		return
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			from := cb.transitionLocked(StateOpen)
			cb.mu.Unlock()
			cb.notify(from, StateOpen)
			return
		}
	case StateOpen:
		// a call admitted before another goroutine opened the circuit
		cb.failures++
	}
	cb.mu.Unlock()
}

// transitionLocked switches state and resets the counters the new state owns.
// Caller holds mu. Returns the previous state.
func (cb *CircuitBreaker) transitionLocked(to State) State {
	from := cb.state
	cb.state = to
	switch to {
	case StateOpen:
		cb.nextAttempt = cb.now().Add(cb.cfg.Timeout)
		cb.successes = 0
	case StateHalfOpen:
		cb.successes = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
		cb.nextAttempt = time.Time{}
	}
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from == to {
		return
	}
	if cb.metrics != nil {
		cb.metrics.RecordTransition(context.Background(), cb.name, from, to)
	}
	for _, fn := range cb.listeners {
		fn(cb.name, from, to)
	}
}

// State returns the current state without side effects
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Stats{
		Name:          cb.name,
		State:         cb.state,
		Failures:      cb.failures,
		Successes:     cb.successes,
		TotalRequests: cb.totalRequests,
		Rejections:    cb.rejections,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		s.LastFailureTime = &t
	}
	if cb.state == StateOpen {
		t := cb.nextAttempt
		s.NextAttemptTime = &t
	}
	return s
}

// Reset closes the breaker and clears its counters. Operator use only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.transitionLocked(StateClosed)
	cb.totalRequests = 0
	cb.rejections = 0
	cb.lastFailureTime = time.Time{}
	cb.mu.Unlock()

	cb.log.Info("circuit breaker reset", zap.String("breaker", cb.name))
	cb.notify(from, StateClosed)
}

// ForceState moves the breaker to state. Forcing OPEN starts a fresh timeout.
// Operator use only.
func (cb *CircuitBreaker) ForceState(state State) {
	cb.mu.Lock()
	from := cb.transitionLocked(state)
	cb.mu.Unlock()

	cb.log.Warn("circuit breaker state forced",
		zap.String("breaker", cb.name),
		zap.String("from", from.String()),
		zap.String("to", state.String()))
	cb.notify(from, state)
}
