package application

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KOMKZ/yogan-shield/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaderFromYAML(t *testing.T, yaml string) *config.Loader {
	t.Helper()
	t.Setenv("SHIELD_ENV", "test")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	loader, err := config.NewLoaderBuilder().WithConfigPath(dir).Build()
	require.NoError(t, err)
	return loader
}

func TestDefaultAppConfig_Valid(t *testing.T) {
	cfg := DefaultAppConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.True(t, cfg.Middleware.TraceID.Enable)
	assert.False(t, cfg.Middleware.CORS.Enable)
	assert.Equal(t, time.Minute, cfg.Reporter.Interval)
}

func TestLoadAppConfig_MergesOverDefaults(t *testing.T) {
	loader := loaderFromYAML(t, `
app:
  version: 1.2.3
http:
  port: 9090
  mode: debug
  read_timeout: 3s
middleware:
  cors:
    enable: true
    allow_origins: ["https://dash.example.com"]
reporter:
  interval: 30s
`)

	cfg, err := loadAppConfig(loader.UnmarshalKey)
	require.NoError(t, err)

	assert.Equal(t, "yogan-shield", cfg.App.Name)
	assert.Equal(t, "1.2.3", cfg.App.Version)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.HTTP.Mode)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout)
	assert.True(t, cfg.Middleware.CORS.Enable)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.Middleware.CORS.AllowOrigins)
	assert.NotEmpty(t, cfg.Middleware.CORS.AllowHeaders)
	assert.True(t, cfg.Middleware.RequestLog.Enable)
	assert.Equal(t, 30*time.Second, cfg.Reporter.Interval)
}

func TestLoadAppConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"port out of range", "http:\n  port: 70000\n", "http.port"},
		{"unknown mode", "http:\n  mode: verbose\n", "http.mode"},
		{"reporter too fast", "reporter:\n  enabled: true\n  interval: 10ms\n", "reporter.interval"},
		{"unknown error log level", "httpx:\n  log_level: trace\n", "httpx.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := loaderFromYAML(t, tt.yaml)

			_, err := loadAppConfig(loader.UnmarshalKey)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadAppConfig_DecodeError(t *testing.T) {
	loader := loaderFromYAML(t, "http:\n  port: not-a-number\n")

	_, err := loadAppConfig(loader.UnmarshalKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestAppConfig_ApplyDefaults(t *testing.T) {
	var cfg AppConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "yogan-shield", cfg.App.Name)
	assert.Equal(t, "release", cfg.HTTP.Mode)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "X-Trace-ID", cfg.Middleware.TraceID.TraceIDHeader)
	assert.Equal(t, time.Minute, cfg.Reporter.Interval)
}
