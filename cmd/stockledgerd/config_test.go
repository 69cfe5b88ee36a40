package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STOCKLEDGER_JWT_SECRET", "secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "/api/v1", cfg.BasePath)
	assert.Equal(t, 3, cfg.MaxWriteRetries)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.False(t, cfg.IsProd())
	assert.True(t, cfg.Metrics)
}

func TestLoadConfigOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("STOCKLEDGER_STORE_DRIVER", "SQLite")
	t.Setenv("STOCKLEDGER_STORE_DSN", "/var/lib/stockledger.db")
	t.Setenv("STOCKLEDGER_BRANCHES", "Cochin, Coimbatore")
	t.Setenv("STOCKLEDGER_LOG_LEVEL", "debug")
	t.Setenv("STOCKLEDGER_LOCK_TTL", "10s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, []string{"Cochin", "Coimbatore"}, cfg.Branches)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"STOCKLEDGER_JWT_SECRET": ""}},
		{"unknown driver", map[string]string{"STOCKLEDGER_STORE_DRIVER": "redis"}},
		{"dsn required", map[string]string{"STOCKLEDGER_STORE_DRIVER": "postgres"}},
		{"bad timezone", map[string]string{"STOCKLEDGER_TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
