package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load("test-service")
	require.NoError(t, err)

	assert.Equal(t, "test-service", cfg.Server.ServiceName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DefaultRecentAccountLimit, cfg.Investigation.RecentAccountLimit)
	assert.Equal(t, DefaultReuseLimit, cfg.Investigation.ReuseLimit)
	assert.Equal(t, 7, cfg.Retention.Days)
	assert.Equal(t, 6*time.Hour, cfg.Retention.Interval())
	assert.Equal(t, 2.0, cfg.Simulator.TPS)
	assert.True(t, cfg.Simulator.Enabled)
	assert.Equal(t, "FRAUD", cfg.NATS.StreamName)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, 86400, cfg.Redis.IdempotencyTTL)
}

func TestLoadCustomValues(t *testing.T) {
	os.Clearenv()
	t.Setenv("RECENT_ACCOUNT_LIMIT", "60")
	t.Setenv("REUSE_LIMIT", "90")
	t.Setenv("SIM_TPS", "5.5")
	t.Setenv("SIM_ENABLED", "false")
	t.Setenv("RETENTION_INTERVAL_HOURS", "0")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "10")
	t.Setenv("RATE_LIMIT_INGEST_LIMIT", "50")
	t.Setenv("REDIS_IDEMPOTENCY_TTL", "600")

	cfg, err := Load("test-service")
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Investigation.RecentAccountLimit)
	assert.Equal(t, 90, cfg.Investigation.ReuseLimit)
	assert.Equal(t, 5.5, cfg.Simulator.TPS)
	assert.False(t, cfg.Simulator.Enabled)
	assert.Equal(t, 6, cfg.Retention.IntervalHours)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window())
	assert.Equal(t, 50, cfg.RateLimit.IngestLimit)
	assert.Equal(t, 600, cfg.Redis.IdempotencyTTL)
}

func TestLoadInvalidNumbersFallBackToDefaults(t *testing.T) {
	os.Clearenv()
	t.Setenv("RECENT_ACCOUNT_LIMIT", "not-a-number")

	cfg, err := Load("test-service")
	require.NoError(t, err)
	assert.Equal(t, DefaultRecentAccountLimit, cfg.Investigation.RecentAccountLimit)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"recent limit too large", "RECENT_ACCOUNT_LIMIT", "999999"},
		{"reuse limit zero", "REUSE_LIMIT", "0"},
		{"negative tps", "SIM_TPS", "-1"},
		{"negative retention", "RETENTION_DAYS", "-3"},
		{"sample rate above one", "OTEL_SAMPLE_RATE", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(tt.key, tt.val)

			_, err := Load("test-service")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "fraud", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/fraud?sslmode=disable", c.URL())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=fraud sslmode=disable", c.DSN())
}
