package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"APP_LISTEN_ADDR", "APP_DATABASE_URL", "APP_ADMIN_IDS", "APP_KEY_PREFIX",
		"APP_MAX_GENERATE", "APP_PUBLIC_URL", "APP_FINGERPRINT_SOURCE",
		"APP_KEY_RETENTION_DAYS", "APP_SWEEP_INTERVAL", "APP_AUTH_RATE", "APP_ENABLE_TEST_ENDPOINT",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "SIEO", cfg.KeyPrefix)
	assert.Equal(t, 50, cfg.MaxGenerate)
	assert.Equal(t, FingerprintFromHost, cfg.FingerprintSource)
	assert.Equal(t, 0, cfg.KeyRetentionDays)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 5.0, cfg.AuthRate)
	assert.False(t, cfg.EnableTestEndpoint)
	assert.Nil(t, cfg.AdminIDs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ADMIN_IDS", " 111, 222 ,,")
	t.Setenv("APP_KEY_PREFIX", "ABCD")
	t.Setenv("APP_MAX_GENERATE", "10")
	t.Setenv("APP_PUBLIC_URL", "https://auth.example.com/")
	t.Setenv("APP_FINGERPRINT_SOURCE", "remote")
	t.Setenv("APP_KEY_RETENTION_DAYS", "14")
	t.Setenv("APP_SWEEP_INTERVAL", "15m")
	t.Setenv("APP_AUTH_RATE", "0.5")
	t.Setenv("APP_ENABLE_TEST_ENDPOINT", "true")

	cfg := Load()
	assert.Equal(t, []string{"111", "222"}, cfg.AdminIDs)
	assert.True(t, cfg.IsAdminID("222"))
	assert.False(t, cfg.IsAdminID("333"))
	assert.Equal(t, "ABCD", cfg.KeyPrefix)
	assert.Equal(t, 10, cfg.MaxGenerate)
	assert.Equal(t, "https://auth.example.com", cfg.PublicURL)
	assert.Equal(t, FingerprintFromRemote, cfg.FingerprintSource)
	assert.Equal(t, 14, cfg.KeyRetentionDays)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 0.5, cfg.AuthRate)
	assert.True(t, cfg.EnableTestEndpoint)
}

func TestLoadIgnoresBadValues(t *testing.T) {
	t.Setenv("APP_MAX_GENERATE", "lots")
	t.Setenv("APP_SWEEP_INTERVAL", "-5m")
	t.Setenv("APP_AUTH_RATE", "fast")
	t.Setenv("APP_FINGERPRINT_SOURCE", "bogus")

	cfg := Load()
	assert.Equal(t, 50, cfg.MaxGenerate)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 5.0, cfg.AuthRate)
	assert.Equal(t, FingerprintFromHost, cfg.FingerprintSource)
}
