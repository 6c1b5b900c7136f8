// Package health aggregates dependency checks into the /health responses.
//
// A check returns nil when fine, Degraded(err) when the service keeps
// working without the dependency, and any other error when it cannot.
package health

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Checker 一个依赖项的检查
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc 用函数实现 Checker
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (f CheckerFunc) Name() string                    { return f.CheckName }
func (f CheckerFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

type degradedError struct{ err error }

func (e degradedError) Error() string { return e.err.Error() }
func (e degradedError) Unwrap() error { return e.err }

// Degraded marks err as non-fatal; nil stays nil
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return degradedError{err: err}
}

func IsDegraded(err error) bool {
	return errors.As(err, new(degradedError))
}

// CheckResult one checker's outcome
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Response body of GET /health; Status is the worst of Checks
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (r *Response) IsHealthy() bool  { return r.Status == StatusHealthy }
func (r *Response) IsDegraded() bool { return r.Status == StatusDegraded }
