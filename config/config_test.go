package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shaped like a bcrypt hash; Validate only checks the prefix.
const sampleHash = "$2a$04$0Zqj5RSPVT5Vbzx1B0V6TOZ8g3C4GgLdwHBYHcLFKUo7c5q0n8u2C"

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "Asia/Seoul", cfg.App.Timezone)
	assert.Equal(t, "Asia/Seoul", cfg.App.Location.String())
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Zero(t, cfg.Scheduler.OverdueInterval)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.OverdueGrace)
	assert.Equal(t, "text", cfg.Observability.LogFormat)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "desk")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ADMIN_API_KEY_HASHES", sampleHash+", ")
	t.Setenv("SCHEDULER_OVERDUE_INTERVAL", "90s")
	t.Setenv("HTTP_RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://desk:pw@db.internal:5432/rentals?sslmode=require", cfg.Database.URL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, []string{sampleHash}, cfg.HTTP.AdminKeyHashes)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.OverdueInterval)
	assert.Equal(t, 120, cfg.HTTP.RateLimitPerMinute)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestFromEnv_RejectsUnknownTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "APP_TIMEZONE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"production needs database", map[string]string{"APP_ENV": "production", "ADMIN_API_KEY_HASHES": sampleHash}, "DATABASE_URL is required"},
		{"production needs keys", map[string]string{"APP_ENV": "production", "DATABASE_URL": "postgres://x"}, "ADMIN_API_KEY_HASHES is required"},
		{"plaintext key", map[string]string{"ADMIN_API_KEY_HASHES": "hunter2"}, "entry 1 is not a bcrypt hash"},
		{"bad port", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"unknown environment", map[string]string{"APP_ENV": "prod"}, `APP_ENV "prod"`},
		{"short lock lease", map[string]string{"REDIS_ENABLED": "true", "REDIS_LOCK_TTL": "100ms"}, "REDIS_LOCK_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_PORT=8181\nAPP_NAME=from-dotenv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("HTTP_PORT")
		_ = os.Unsetenv("APP_NAME")
	})

	// Already-set variables win over .env.
	t.Setenv("APP_NAME", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.HTTP.Port)
	assert.Equal(t, "from-env", cfg.App.Name)
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_EVENTS_FANOUT", "true")
	t.Setenv("FEATURE_OVERDUE_NOTICES", "false")

	ff := LoadFeatureFlags()
	assert.True(t, ff.IsEnabled(FeatureEventFanout))
	assert.False(t, ff.IsEnabled(FeatureOverdueNotices))
	assert.True(t, ff.IsEnabled(FeatureDistributedLock))
	assert.False(t, ff.IsEnabled("unknown.feature"))

	require.NoError(t, ff.DisableFeature(FeatureBorrowerCache))
	assert.Equal(t, []string{FeatureEventFanout, FeatureDistributedLock}, ff.Enabled())

	var flagErr *FeatureFlagError
	assert.ErrorAs(t, ff.EnableFeature("nope"), &flagErr)
}
