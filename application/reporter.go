package application

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/KOMKZ/yogan-shield/stats"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StatsReporter 定时把 stats 快照写入日志
// 缓存数据是全实例共享的，熔断与负载是本进程的
type StatsReporter struct {
	collector *stats.Collector
	scheduler gocron.Scheduler
	interval  time.Duration
	log       *logger.CtxZapLogger
}

// NewStatsReporter 创建汇报器（Start 之前不会运行）
func NewStatsReporter(collector *stats.Collector, interval time.Duration, log *logger.CtxZapLogger) (*StatsReporter, error) {
	if log == nil {
		log = logger.GetLogger("reporter")
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLogger(gocronLogger{log: log}))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &StatsReporter{
		collector: collector,
		scheduler: scheduler,
		interval:  interval,
		log:       log,
	}, nil
}

// Start 注册定时任务并启动调度器，首次汇报立即执行
func (r *StatsReporter) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.Report, ctx),
		gocron.WithName("stats-report"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register stats job: %w", err)
	}
	r.scheduler.Start()
	r.log.DebugCtx(ctx, "stats reporter started", zap.Duration("interval", r.interval))
	return nil
}

// Report 采集一次快照并记录
func (r *StatsReporter) Report(ctx context.Context) {
	s := r.collector.Collect(ctx)

	fields := []zap.Field{
		zap.Int64("cache_hits", s.Cache.Hits),
		zap.Int64("cache_misses", s.Cache.Misses),
		zap.Float64("cache_hit_rate", s.Cache.HitRate),
		zap.Int64("cache_keys", s.Cache.Keys),
		zap.String("load_level", s.Load.LoadLevel.String()),
		zap.Float64("rps", s.Load.RequestsPerSecond),
		zap.Float64("error_rate", s.Load.ErrorRate),
		zap.Any("breakers", breakerStates(s)),
	}
	if s.RateLimit != nil {
		fields = append(fields,
			zap.Float64("store_load", s.RateLimit.StoreLoad),
			zap.Float64("limit_factor", s.RateLimit.LoadFactor))
	}
	r.log.InfoCtx(ctx, "stats", fields...)
}

// Shutdown 停止调度器，等待正在运行的汇报结束
func (r *StatsReporter) Shutdown(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- r.scheduler.Shutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("scheduler shutdown timeout (%v)", timeout)
	}
}

func breakerStates(s stats.Snapshot) map[string]string {
	states := make(map[string]string, len(s.CircuitBreaker))
	for name, b := range s.CircuitBreaker {
		states[name] = b.State.String()
	}
	return states
}

// gocronLogger routes scheduler diagnostics into zap
type gocronLogger struct {
	log *logger.CtxZapLogger
}

func (l gocronLogger) Debug(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Debugw(msg, args...)
}

func (l gocronLogger) Info(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Infow(msg, args...)
}

func (l gocronLogger) Warn(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Warnw(msg, args...)
}

func (l gocronLogger) Error(msg string, args ...any) {
	l.log.GetZapLogger().Sugar().Errorw(msg, args...)
}
