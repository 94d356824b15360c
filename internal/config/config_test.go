package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpion/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.OracleTick)
	assert.Greater(t, cfg.FundingIntervalTicks, 0)
}

func TestLoadRespectsEnvOverride(t *testing.T) {
	t.Setenv("PERPION_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("PERPION_ORACLE_TICK", "1s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, time.Second, cfg.OracleTick)

	_ = os.Unsetenv("PERPION_LISTEN_ADDR")
	_ = os.Unsetenv("PERPION_ORACLE_TICK")
}
