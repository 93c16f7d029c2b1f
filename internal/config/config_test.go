package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "json", cfg.App.LogFormat)

	assert.Equal(t, time.Second, cfg.Quotes.FetchInterval())
	assert.Equal(t, 10*time.Second, cfg.Quotes.GetRequestTimeout())
	assert.Equal(t, uint16(50), cfg.Quotes.SlippageBps)

	assert.Equal(t, "paper", cfg.Chain.Mode)
	assert.Equal(t, 30*time.Second, cfg.Chain.GetTimeout())

	assert.Equal(t, 5*time.Second, cfg.Agent.EvaluationInterval())
	assert.Equal(t, time.Minute, cfg.Agent.MonitoringInterval())
	assert.Equal(t, 3, cfg.Agent.MaxConcurrentExecutions)
	assert.True(t, cfg.Agent.LearningEnabled)

	assert.Equal(t, "0.0.0.0:8081", cfg.API.GetAPIAddr())
	assert.Equal(t, 9100, cfg.Monitoring.PrometheusPort)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Advisor.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
chain:
  mode: live
  engine_url: http://engine:8899
agent:
  max_concurrent_executions: 8
  learning_enabled: false
quotes:
  fetch_interval_ms: 250
  pairs:
    - input_mint: EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
      output_mint: So11111111111111111111111111111111111111112
      amount: 1000000
`))
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Chain.Mode)
	assert.Equal(t, 8, cfg.Agent.MaxConcurrentExecutions)
	assert.False(t, cfg.Agent.LearningEnabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Quotes.FetchInterval())
	require.Len(t, cfg.Quotes.Pairs, 1)
	assert.Equal(t, uint64(1_000_000), cfg.Quotes.Pairs[0].Amount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"fetch interval too short", "quotes:\n  fetch_interval_ms: 50\n"},
		{"slippage out of range", "quotes:\n  slippage_bps: 20000\n"},
		{"zero concurrency", "agent:\n  max_concurrent_executions: 0\n"},
		{"evaluation interval too short", "agent:\n  evaluation_interval_ms: 10\n"},
		{"bad chain mode", "chain:\n  mode: dryrun\n"},
		{"live without engine url", "chain:\n  mode: live\n  engine_url: \"\"\n"},
		{"pair missing mint", "quotes:\n  pairs:\n    - input_mint: a\n      amount: 1\n"},
		{"pair identical mints", "quotes:\n  pairs:\n    - input_mint: a\n      output_mint: a\n      amount: 1\n"},
		{"pair zero amount", "quotes:\n  pairs:\n    - input_mint: a\n      output_mint: b\n"},
		{"telegram without token", "telegram:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: 5432, User: "funk", Password: "secret",
		Database: "vaultfunk", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=funk password=secret dbname=vaultfunk sslmode=disable",
		db.GetDSN())
}

func TestGetRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", r.GetRedisAddr())
}
