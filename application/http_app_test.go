package application

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/yogan-shield/cache"
)

const appYAML = `
app:
  name: shield-test
http:
  host: 127.0.0.1
  port: 0
  mode: test
middleware:
  request_log:
    enable: false
reporter:
  enabled: false
logger:
  level: error
  enable_console: false
redis:
  addr: %s
  max_retries: -1
  connect:
    attempts: 1
    backoff: 1ms
limiter:
  store_type: memory
  max_requests: 100
`

// writeAppConfig prepares a config dir pointing at a fresh miniredis
func writeAppConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("SHIELD_ENV", "test")
	mr := miniredis.RunT(t)

	dir := t.TempDir()
	content := fmt.Sprintf(appYAML, mr.Addr())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApplication_RunNonBlocking(t *testing.T) {
	app, err := New(writeAppConfig(t), "SHIELD_APP_TEST", nil)
	require.NoError(t, err)
	app.WithVersion("0.0.1-test")

	var ready bool
	app.OnReady(func(*Application) error {
		ready = true
		return nil
	})
	app.RegisterRoutes(RouterFunc(func(engine *gin.Engine, a *Application) {
		engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, a.AppConfig().App.Name) })
	}))

	require.NoError(t, app.RunNonBlocking())
	assert.True(t, ready)
	assert.Equal(t, StateRunning, app.GetState())

	base := "http://" + app.GetHTTPServer().Addr()

	code, body := get(t, base+"/ping")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "shield-test", body)

	code, body = get(t, base+"/health")
	assert.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"redis"`)

	code, _ = get(t, base+"/health/liveness")
	assert.Equal(t, http.StatusOK, code)

	// components are shared through the container
	_, err = do.Invoke[*cache.Manager](app.GetInjector())
	require.NoError(t, err)

	require.NoError(t, app.Stop())
	assert.Equal(t, StateStopped, app.GetState())

	_, err = http.Get(base + "/ping")
	assert.Error(t, err)
}

func TestApplication_OnSetupError(t *testing.T) {
	app, err := New(writeAppConfig(t), "SHIELD_APP_TEST", nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	app.OnSetup(func(*Application) error { return boom })

	err = app.RunNonBlocking()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, app.GetHTTPServer())
	_ = app.BaseApplication.Shutdown(time.Second)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Setenv("SHIELD_ENV", "test")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("http:\n  port: -1\n"), 0o644))

	_, err := New(dir, "SHIELD_APP_TEST", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
