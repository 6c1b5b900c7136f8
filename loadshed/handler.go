// Package loadshed sheds low priority traffic while this process is busy.
//
// The signal is the request rate this instance observed over a rolling window.
// It is deliberately local: every instance decides for itself.
package loadshed

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KOMKZ/yogan-shield/logger"
	"go.uber.org/zap"
)

// DefaultPriority applies when a request states none
const DefaultPriority = 5

// Metrics is the derived view of the current window
type Metrics struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	ErrorRate         float64 `json:"errorRate"`   // percent
	CurrentLoad       float64 `json:"currentLoad"` // percent of the critical threshold
	LoadLevel         Level   `json:"loadLevel"`
	AvgResponseTime   float64 `json:"avgResponseTime"` // ms
	SampleCount       int     `json:"sampleCount"`
}

// Fallback is the body returned to shed requests
type Fallback struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	LoadLevel   Level  `json:"loadLevel"`
	RetryAfter  int    `json:"retryAfter"` // seconds
	RequestType string `json:"requestType"`
}

type sample struct {
	at       time.Time
	duration time.Duration
	isError  bool
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the logger
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithMetrics attaches an OTel metrics provider
func WithMetrics(m *OTelMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// Handler tracks recent requests and decides admission by priority
type Handler struct {
	cfg     Config
	log     *logger.CtxZapLogger
	now     func() time.Time
	metrics *OTelMetrics

	mu        sync.Mutex
	samples   []sample // ordered by at
	head      int      // first live sample
	lastLevel Level
}

// NewHandler validates cfg and creates a handler
func NewHandler(cfg Config, opts ...Option) (*Handler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handler{
		cfg: cfg,
		log: logger.GetLogger("yogan"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics != nil {
		h.metrics.RegisterSource(h.Metrics)
	}
	return h, nil
}

// Config returns the effective configuration
func (h *Handler) Config() Config {
	return h.cfg
}

// RecordRequest appends one completed request and prunes the window
func (h *Handler) RecordRequest(duration time.Duration, isError bool) {
	h.mu.Lock()
	now := h.now()
	h.pruneLocked(now)

	if h.live() >= h.cfg.MaxSamples {
		h.head++
	}
	h.samples = append(h.samples, sample{at: now, duration: duration, isError: isError})
	level := h.levelLocked()
	prev := h.lastLevel
	h.lastLevel = level
	h.mu.Unlock()

	if level != prev {
		h.logLevelChange(prev, level)
	}
}

// Metrics prunes then derives the window view
func (h *Handler) Metrics() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruneLocked(h.now())

	live := h.samples[h.head:]
	m := Metrics{
		SampleCount:       len(live),
		RequestsPerSecond: h.rpsLocked(),
	}
	if len(live) > 0 {
		var errs int
		var total time.Duration
		for _, s := range live {
			if s.isError {
				errs++
			}
			total += s.duration
		}
		m.ErrorRate = float64(errs) / float64(len(live)) * 100
		m.AvgResponseTime = float64(total.Microseconds()) / 1000 / float64(len(live))
	}
	m.CurrentLoad = m.RequestsPerSecond / h.cfg.CriticalThreshold * 100
	m.LoadLevel = h.level(m.RequestsPerSecond)
	return m
}

// LoadLevel is a pure function of the windowed request rate
func (h *Handler) LoadLevel() Level {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruneLocked(h.now())
	return h.levelLocked()
}

// ShouldAcceptRequest admits everything at NORMAL, then priority >= 3, 7 and 9
func (h *Handler) ShouldAcceptRequest(priority int) bool {
	return h.LoadLevel().Admits(priority)
}

// FallbackResponse builds the shed body for the current level
func (h *Handler) FallbackResponse(requestType string) Fallback {
	level := h.LoadLevel()
	return Fallback{
		Error:       "Service Temporarily Unavailable",
		Message:     "System is under high load. Please try again later.",
		LoadLevel:   level,
		RetryAfter:  int(math.Ceil(h.retryAfter(level).Seconds())),
		RequestType: requestType,
	}
}

// Shed records a rejected request and returns the body to send
func (h *Handler) Shed(ctx context.Context, priority int, requestType string) Fallback {
	fb := h.FallbackResponse(requestType)
	h.log.DebugCtx(ctx, "request shed",
		zap.String("level", fb.LoadLevel.String()),
		zap.Int("priority", priority),
		zap.String("request_type", requestType))
	if h.metrics != nil {
		h.metrics.RecordShed(ctx, fb.LoadLevel, priority)
	}
	return fb
}

func (h *Handler) retryAfter(level Level) time.Duration {
	switch level {
	case LevelCritical:
		return h.cfg.RetryAfter.Critical
	case LevelHigh:
		return h.cfg.RetryAfter.High
	default:
		return h.cfg.RetryAfter.Elevated
	}
}

// ParsePriority reads a priority header value, DefaultPriority when missing or invalid
func ParsePriority(header string) int {
	header = strings.TrimSpace(header)
	if header == "" {
		return DefaultPriority
	}
	p, err := strconv.Atoi(header)
	if err != nil {
		return DefaultPriority
	}
	return p
}

func (h *Handler) level(rps float64) Level {
	switch {
	case rps >= h.cfg.CriticalThreshold:
		return LevelCritical
	case rps >= h.cfg.HighThreshold:
		return LevelHigh
	case rps >= h.cfg.ElevatedThreshold:
		return LevelElevated
	default:
		return LevelNormal
	}
}

func (h *Handler) levelLocked() Level {
	return h.level(h.rpsLocked())
}

func (h *Handler) rpsLocked() float64 {
	return float64(h.live()) / h.cfg.MonitoringWindow.Seconds()
}

func (h *Handler) live() int {
	return len(h.samples) - h.head
}

// pruneLocked drops samples older than the window and compacts the backing slice
// once more than half of it is dead
func (h *Handler) pruneLocked(now time.Time) {
	cutoff := now.Add(-h.cfg.MonitoringWindow)
	for h.head < len(h.samples) && h.samples[h.head].at.Before(cutoff) {
		h.head++
	}
	if h.head > 0 && h.head >= len(h.samples)/2 {
		n := copy(h.samples, h.samples[h.head:])
		clear(h.samples[n:])
		h.samples = h.samples[:n]
		h.head = 0
	}
}

func (h *Handler) logLevelChange(from, to Level) {
	fields := []zap.Field{zap.String("from", from.String()), zap.String("to", to.String())}
	if to > from {
		h.log.Warn("load level raised", fields...)
		return
	}
	h.log.Info("load level lowered", fields...)
}
