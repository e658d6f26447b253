package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/pact/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("ADMIN_JWT_SECRET", "")

	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_URL", "postgres://production:5432/pact")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ADMIN_JWT_SECRET", "sekrit")
	t.Setenv("PROFILE_PATH", "/etc/pact/profile.yaml")

	cfg := config.Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres://production:5432/pact", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "sekrit", cfg.AdminJWTSecret)
	assert.Equal(t, "/etc/pact/profile.yaml", cfg.ProfilePath)
}

func TestDefaultProfile(t *testing.T) {
	p := config.DefaultProfile()

	assert.Equal(t, 10*time.Minute, p.WizardTimeout())
	assert.Equal(t, time.Minute, p.SweepInterval())
	assert.Equal(t, int64(1000), p.Funds.FeeHeadroomMicro)
	assert.InDelta(t, 0.5, p.RatePerSecond(), 0.001)
	assert.Equal(t, 2, p.Reliability.LockDelta)
	assert.Equal(t, -10, p.Reliability.ForfeitDelta)
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := `
name: strict
wizard:
  timeout_minutes: 5
funds:
  fee_headroom_micro: 2000
reliability:
  lock_delta: 1
  forfeit_delta: -20
  tiers:
    - min: 90
      badge: Gold
    - min: 0
      badge: Base
sweep:
  interval_seconds: 30
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err := config.LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "strict", p.Name)
	assert.Equal(t, 5*time.Minute, p.WizardTimeout())
	assert.Equal(t, int64(2000), p.Funds.FeeHeadroomMicro)
	assert.Equal(t, 1, p.Reliability.LockDelta)
	assert.Equal(t, -20, p.Reliability.ForfeitDelta)
	assert.Len(t, p.Reliability.Tiers, 2)
	assert.Equal(t, 30*time.Second, p.SweepInterval())

	// Fields absent from the file keep defaults.
	assert.InDelta(t, 0.5, p.RatePerSecond(), 0.001)
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := config.LoadProfile("/does/not/exist.yaml")
	assert.Error(t, err)
}
