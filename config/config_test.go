package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DISCIPLINE_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "discipline.db", cfg.Database.Path)
	assert.Equal(t, 30, cfg.Engine.AbsenceWindowDays)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, "log", cfg.Notifications.Driver)
	assert.Equal(t, time.Hour, cfg.Scheduler.ThresholdInterval)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
  gracefulTimeout: 3s
database:
  path: /var/lib/discipline/data.db
engine:
  absenceWindowDays: 60
notifications:
  driver: redis
  redis:
    addr: redis:6379
    channel: hr.alerts
scheduler:
  thresholdInterval: 15m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 3*time.Second, cfg.Server.GracefulTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/discipline/data.db", cfg.Database.Path)
	assert.Equal(t, 60, cfg.Engine.AbsenceWindowDays)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, "redis", cfg.Notifications.Driver)
	assert.Equal(t, "hr.alerts", cfg.Notifications.Redis.Channel)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ThresholdInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  path: from-file.db\n")
	t.Setenv("DISCIPLINE_DB_PATH", "from-env.db")
	t.Setenv("DISCIPLINE_MAX_RETRIES", "7")
	t.Setenv("DISCIPLINE_LOG_FORMAT", "json")
	t.Setenv("DISCIPLINE_SCHEDULER_ENABLED", "false")
	t.Setenv("DISCIPLINE_ALLOWED_ORIGINS", "https://hr.example.com,https://admin.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Engine.MaxRetries)
	assert.True(t, cfg.Logging.JSON)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, []string{"https://hr.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "not found")

	_, err = Load(writeConfig(t, "server: [unterminated"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "notifications:\n  driver: smtp\n"))
	assert.ErrorContains(t, err, "notifications.driver")

	_, err = Load(writeConfig(t, "engine:\n  absenceWindowDays: 0\n"))
	assert.ErrorContains(t, err, "absenceWindowDays")
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", true)

	logger.Info("hidden")
	logger.Warn("shown", "employee_id", "emp-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "emp-1", line["employee_id"])
}
