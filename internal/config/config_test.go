package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	fc, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIListen, fc.Server.APIListen)
	assert.Equal(t, DefaultMetricsListen, fc.Server.MetricsListen)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
file = "/var/log/healthcore.log"
max_size_mb = 20

[memory]
interval = "15s"
system_warning = 60.0
leak_window = 12

[system]
disk_path = "/data"
cpu_critical = 90.0
temp_dirs = ["/tmp", "/var/tmp"]

[process]
max_processes = 5
default_timeout = "10s"
allowed_commands = ["ps", "df"]

[health]
poll_interval = "20s"
review_child_count = 4

[breaker.api]
failure_threshold = 2
cooldown = "45s"

[breaker.database]
failure_threshold = 8
half_open_trials = 3

[server]
api_listen = "0.0.0.0:9000"

[history]
dsn = "sqlite:///var/lib/healthcore/alerts.db"
`)

	fc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", fc.Log.Level)
	assert.Equal(t, 20, fc.Log.MaxSizeMB)

	assert.Equal(t, 15*time.Second, fc.Memory.Interval)
	assert.Equal(t, 60.0, fc.Memory.SystemWarning)
	assert.Equal(t, 12, fc.Memory.LeakWindow)

	assert.Equal(t, "/data", fc.System.DiskPath)
	assert.Equal(t, 90.0, fc.System.CPUCritical)
	assert.Equal(t, []string{"/tmp", "/var/tmp"}, fc.System.TempDirs)

	assert.Equal(t, 5, fc.Process.MaxProcesses)
	assert.Equal(t, 10*time.Second, fc.Process.DefaultTimeout)
	assert.Equal(t, []string{"ps", "df"}, fc.Process.AllowedCommands)

	assert.Equal(t, 20*time.Second, fc.Health.PollInterval)
	assert.Equal(t, 4, fc.Health.ReviewChildCount)

	require.Contains(t, fc.Breaker, "api")
	assert.Equal(t, 2, fc.Breaker["api"].FailureThreshold)
	assert.Equal(t, 45*time.Second, fc.Breaker["api"].Cooldown)
	require.Contains(t, fc.Breaker, "database")
	assert.Equal(t, 8, fc.Breaker["database"].FailureThreshold)
	assert.Equal(t, 3, fc.Breaker["database"].HalfOpenTrials)

	assert.Equal(t, "0.0.0.0:9000", fc.Server.APIListen)
	// Omitted listener still gets the default.
	assert.Equal(t, DefaultMetricsListen, fc.Server.MetricsListen)

	assert.Equal(t, "sqlite:///var/lib/healthcore/alerts.db", fc.History.DSN)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, "[log\nlevel=")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.toml")
	require.Error(t, err)
}
