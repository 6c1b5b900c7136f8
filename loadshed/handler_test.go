package loadshed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KOMKZ/yogan-shield/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// tenSecondConfig makes thresholds of 1/2/3 req/s equal 10/20/30 samples
func tenSecondConfig() Config {
	return Config{
		MonitoringWindow:  10 * time.Second,
		ElevatedThreshold: 1,
		HighThreshold:     2,
		CriticalThreshold: 3,
	}
}

func newTestHandler(t *testing.T, cfg Config, clock *fakeClock, opts ...Option) *Handler {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now), WithLogger(logger.Nop())}, opts...)
	h, err := NewHandler(cfg, opts...)
	require.NoError(t, err)
	return h
}

func record(h *Handler, n int, isError bool) {
	for i := 0; i < n; i++ {
		h.RecordRequest(20*time.Millisecond, isError)
	}
}

func TestHandler_LevelsFollowRate(t *testing.T) {
	clock := newFakeClock()
	h := newTestHandler(t, tenSecondConfig(), clock)

	assert.Equal(t, LevelNormal, h.LoadLevel())
	record(h, 9, false)
	assert.Equal(t, LevelNormal, h.LoadLevel())
	record(h, 1, false)
	assert.Equal(t, LevelElevated, h.LoadLevel())
	record(h, 10, false)
	assert.Equal(t, LevelHigh, h.LoadLevel())
	record(h, 10, false)
	assert.Equal(t, LevelCritical, h.LoadLevel())
}

func TestHandler_PriorityAdmission(t *testing.T) {
	tests := []struct {
		name     string
		samples  int
		admitted []int
		rejected []int
	}{
		{"normal", 0, []int{0, 1, 5, 10}, nil},
		{"elevated", 10, []int{3, 5, 9}, []int{0, 2}},
		{"high", 20, []int{7, 8, 10}, []int{3, 5, 6}},
		{"critical", 30, []int{9, 10}, []int{5, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tenSecondConfig(), newFakeClock())
			record(h, tt.samples, false)
			for _, p := range tt.admitted {
				assert.True(t, h.ShouldAcceptRequest(p), "priority %d", p)
			}
			for _, p := range tt.rejected {
				assert.False(t, h.ShouldAcceptRequest(p), "priority %d", p)
			}
		})
	}
}

func TestHandler_DefaultThresholdScenario(t *testing.T) {
	// 300 req/s sustained over a 60s window -> HIGH
	clock := newFakeClock()
	h := newTestHandler(t, Config{}, clock)
	record(h, 300*60, false)

	assert.Equal(t, LevelHigh, h.LoadLevel())
	assert.False(t, h.ShouldAcceptRequest(5))
	assert.True(t, h.ShouldAcceptRequest(8))

	fb := h.FallbackResponse("analytics")
	assert.Equal(t, LevelHigh, fb.LoadLevel)
	assert.Equal(t, 30, fb.RetryAfter)
	assert.Equal(t, "analytics", fb.RequestType)
}

func TestHandler_WindowPrunes(t *testing.T) {
	clock := newFakeClock()
	h := newTestHandler(t, tenSecondConfig(), clock)

	record(h, 30, false)
	require.Equal(t, LevelCritical, h.LoadLevel())

	clock.Advance(10*time.Second + time.Millisecond)
	assert.Equal(t, LevelNormal, h.LoadLevel())
	assert.Equal(t, 0, h.Metrics().SampleCount)
}

func TestHandler_Metrics(t *testing.T) {
	clock := newFakeClock()
	h := newTestHandler(t, tenSecondConfig(), clock)

	h.RecordRequest(10*time.Millisecond, false)
	h.RecordRequest(30*time.Millisecond, true)
	h.RecordRequest(20*time.Millisecond, false)
	h.RecordRequest(20*time.Millisecond, true)

	m := h.Metrics()
	assert.Equal(t, 4, m.SampleCount)
	assert.InDelta(t, 0.4, m.RequestsPerSecond, 1e-9)
	assert.InDelta(t, 50.0, m.ErrorRate, 1e-9)
	assert.InDelta(t, 20.0, m.AvgResponseTime, 1e-9)
	assert.InDelta(t, 0.4/3*100, m.CurrentLoad, 1e-9)
	assert.Equal(t, LevelNormal, m.LoadLevel)
}

func TestHandler_EmptyMetrics(t *testing.T) {
	h := newTestHandler(t, Config{}, newFakeClock())
	m := h.Metrics()
	assert.Equal(t, Metrics{LoadLevel: LevelNormal}, m)
}

func TestHandler_MaxSamplesBoundsHistory(t *testing.T) {
	cfg := tenSecondConfig()
	cfg.MaxSamples = 5
	h := newTestHandler(t, cfg, newFakeClock())

	record(h, 12, false)
	assert.Equal(t, 5, h.Metrics().SampleCount)
}

func TestHandler_FallbackRetryAfter(t *testing.T) {
	tests := []struct {
		samples    int
		level      Level
		retryAfter int
	}{
		{10, LevelElevated, 5},
		{20, LevelHigh, 30},
		{30, LevelCritical, 60},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			h := newTestHandler(t, tenSecondConfig(), newFakeClock())
			record(h, tt.samples, false)
			fb := h.FallbackResponse("api")
			assert.Equal(t, tt.level, fb.LoadLevel)
			assert.Equal(t, tt.retryAfter, fb.RetryAfter)
		})
	}
}

func TestFallback_JSON(t *testing.T) {
	h := newTestHandler(t, tenSecondConfig(), newFakeClock())
	record(h, 30, false)

	raw, err := json.Marshal(h.Shed(context.Background(), 1, "analytics"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"error": "Service Temporarily Unavailable",
		"message": "System is under high load. Please try again later.",
		"loadLevel": "CRITICAL",
		"retryAfter": 60,
		"requestType": "analytics"
	}`, string(raw))
}

func TestHandler_LogsLevelChanges(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	clock := newFakeClock()
	h := newTestHandler(t, tenSecondConfig(), clock, WithLogger(logger.New(zap.New(core), "loadshed")))

	record(h, 10, false)
	raised := logs.FilterMessage("load level raised").All()
	require.Len(t, raised, 1)
	assert.Equal(t, "ELEVATED", raised[0].ContextMap()["to"])

	clock.Advance(11 * time.Second)
	h.RecordRequest(time.Millisecond, false)
	assert.Equal(t, 1, logs.FilterMessage("load level lowered").Len())
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, DefaultPriority, ParsePriority(""))
	assert.Equal(t, DefaultPriority, ParsePriority("urgent"))
	assert.Equal(t, DefaultPriority, ParsePriority("7.5"))
	assert.Equal(t, 9, ParsePriority(" 9 "))
	assert.Equal(t, 1, ParsePriority("1"))
}

func TestConfig_Validate(t *testing.T) {
	_, err := NewHandler(Config{ElevatedThreshold: 300, HighThreshold: 200})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewHandler(Config{MonitoringWindow: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := Config{}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 200000, cfg.MaxSamples)
}

func TestHandler_Concurrent(t *testing.T) {
	h := newTestHandler(t, Config{}, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.RecordRequest(time.Millisecond, j%10 == 0)
				_ = h.ShouldAcceptRequest(DefaultPriority)
			}
		}()
	}
	wg.Wait()

	m := h.Metrics()
	assert.Equal(t, 2000, m.SampleCount)
	assert.InDelta(t, 10.0, m.ErrorRate, 1e-9)
}
