package reactor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-reactor/pkg/activity"
)

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.False(t, cfg.Activity.Enabled)
	assert.Equal(t, activity.DefaultChannel, cfg.Activity.Channel)
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
activity:
  enabled: true
  channel: audit
logging:
  level: " DEBUG "
metrics:
  enabled: true
  namespace: ""
`))
	require.NoError(t, err)

	assert.True(t, cfg.Activity.Enabled)
	assert.Equal(t, "audit", cfg.Activity.Channel)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestParseConfigRejectsUnknownLevel(t *testing.T) {
	_, err := ParseConfig([]byte("logging:\n  level: loud\n"))
	require.ErrorIs(t, err, errUnknownLogLevel)

	_, err = ParseConfig([]byte("logging: [\n"))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  namespace: app\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.Metrics.Namespace)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigOptionsDriveActivity(t *testing.T) {
	cfg, err := ParseConfig([]byte("activity:\n  enabled: true\n  channel: audit\n"))
	require.NoError(t, err)

	capture := &activity.CaptureHook{}
	opts := append(cfg.Options(), WithActivityHooks(activity.Hooks{capture}))
	_, c := newAppRuntime(t, appState{}, opts...)
	require.NoError(t, c.Set(context.Background(), "counter", 1))

	events := capture.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "audit", events[1].Channel)
}
