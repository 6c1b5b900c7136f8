package health

import (
	"context"
	"sync"
	"time"
)

const defaultTimeout = 5 * time.Second

// severity 用于合并各检查项状态，取最差者
var severity = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

// Aggregator 并发执行全部检查项并合并结果
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
	metadata map[string]interface{}
}

// NewAggregator 创建聚合器，timeout <= 0 时使用 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Aggregator{timeout: timeout, metadata: map[string]interface{}{}}
}

// Register 追加检查项
func (a *Aggregator) Register(checker Checker) {
	a.mu.Lock()
	a.checkers = append(a.checkers, checker)
	a.mu.Unlock()
}

// SetMetadata 附加到每次响应的元数据
func (a *Aggregator) SetMetadata(key string, value interface{}) {
	a.mu.Lock()
	a.metadata[key] = value
	a.mu.Unlock()
}

func (a *Aggregator) snapshot() ([]Checker, map[string]interface{}) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	checkers := append([]Checker(nil), a.checkers...)
	metadata := make(map[string]interface{}, len(a.metadata))
	for k, v := range a.metadata {
		metadata[k] = v
	}
	return checkers, metadata
}

// Check 执行所有检查项；没有检查项时视为健康
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := time.Now()
	checkers, metadata := a.snapshot()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for idx, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[idx] = runCheck(ctx, checker)
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	checks := make(map[string]CheckResult, len(results))
	for _, r := range results {
		checks[r.Name] = r
		if severity[r.Status] > severity[overall] {
			overall = r.Status
		}
	}

	return &Response{
		Status:    overall,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Checks:    checks,
		Metadata:  metadata,
	}
}

func runCheck(ctx context.Context, checker Checker) CheckResult {
	start := time.Now()
	err := checker.Check(ctx)

	r := CheckResult{
		Name:      checker.Name(),
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: start,
		Duration:  time.Since(start),
	}
	if err == nil {
		return r
	}

	r.Error = err.Error()
	if IsDegraded(err) {
		r.Status, r.Message = StatusDegraded, "running degraded"
	} else {
		r.Status, r.Message = StatusUnhealthy, "check failed"
	}
	return r
}
