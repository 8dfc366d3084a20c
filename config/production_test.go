package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *ProductionConfig {
	t.Helper()
	t.Setenv("AUTH_SECRET_KEY", strings.Repeat("s", 32))
	t.Setenv("TRANSPORT_API_KEY", "key")
	t.Setenv("VAULT_KEY_HEX", strings.Repeat("ab", 32))

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	return cfg
}

func TestLoadProductionConfigDefaults(t *testing.T) {
	cfg := validConfig(t)

	assert.Equal(t, "* * * * *", cfg.Scheduler.PopulateSpec)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.LeaderLockTTL)
	assert.Equal(t, "@every 10s", cfg.Scheduler.ProcessSpec)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RetryDelay)
	assert.Equal(t, 5, cfg.Scheduler.DefaultRateLimit)
	assert.Equal(t, 30*24*time.Hour, cfg.Scheduler.Retention)
	assert.Equal(t, 3, cfg.Inventory.DeliveryRetries)
	assert.NoError(t, ValidateProductionConfig(cfg))
}

func TestLoadProductionConfigEnvOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_RETRIES", "5")
	t.Setenv("SCHEDULER_RETRY_DELAY", "90s")
	t.Setenv("EVENTS_KAFKA_BROKERS", "k1:9092, k2:9092,")
	cfg := validConfig(t)

	assert.Equal(t, 5, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.RetryDelay)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *ProductionConfig)
		wantErr string
	}{
		{name: "bad cron spec", mutate: func(cfg *ProductionConfig) { cfg.Scheduler.ProcessSpec = "every ten seconds" }, wantErr: "SCHEDULER_PROCESS_SPEC"},
		{name: "bad timezone", mutate: func(cfg *ProductionConfig) { cfg.Scheduler.Timezone = "Mars/Olympus" }, wantErr: "SCHEDULER_TIMEZONE"},
		{name: "short vault key", mutate: func(cfg *ProductionConfig) { cfg.Vault.KeyHex = "abcd" }, wantErr: "VAULT_KEY_HEX"},
		{name: "short auth secret", mutate: func(cfg *ProductionConfig) { cfg.Auth.SecretKey = "x" }, wantErr: "AUTH_SECRET_KEY"},
		{name: "lease shorter than a minute", mutate: func(cfg *ProductionConfig) { cfg.Scheduler.LeaderLockTTL = 30 * time.Second }, wantErr: "SCHEDULER_LEADER_LOCK_TTL"},
		{name: "leader lock without cache", mutate: func(cfg *ProductionConfig) { cfg.Cache.Enabled = false }, wantErr: "CACHE_ENABLED"},
		{name: "mock transport needs no key", mutate: func(cfg *ProductionConfig) { cfg.Transport.Mock = true; cfg.Transport.APIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRANSPORT_BASE_URL=http://from-file\nDB_NAME=from_file\n"), 0o600))
	t.Setenv("DB_NAME", "from_env")
	t.Setenv("TRANSPORT_BASE_URL", "")
	require.NoError(t, os.Unsetenv("TRANSPORT_BASE_URL"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from_env", os.Getenv("DB_NAME"))
	assert.Equal(t, "http://from-file", os.Getenv("TRANSPORT_BASE_URL"))

	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))
}
