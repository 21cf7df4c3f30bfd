package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Gemini.APIKey = "test-key"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("defaults with api key pass", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("fuse mode needs no api key", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "fuse"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("matching modes require api key", func(t *testing.T) {
		for _, mode := range []string{"match", "full", "once"} {
			cfg := Defaults()
			cfg.Mode = mode
			err := cfg.Validate()
			require.Error(t, err, mode)
			assert.Contains(t, err.Error(), "api_key")
		}
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "ingest"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
	})

	t.Run("dsn bypasses host checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Postgres.DSN = "postgres://u:p@db:5432/prythia"
		cfg.Postgres.Host = ""
		cfg.Postgres.Port = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("archive requires s3 settings", func(t *testing.T) {
		cfg := validConfig()
		cfg.Archive.Enabled = true
		cfg.S3.Bucket = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket")
	})

	t.Run("all problems reported at once", func(t *testing.T) {
		cfg := validConfig()
		cfg.Fusion.PriceFloor = 0
		cfg.Matcher.TopK = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "price_floor")
		assert.Contains(t, err.Error(), "top_k")
	})

	t.Run("staleness cutoff ordering", func(t *testing.T) {
		cfg := validConfig()
		cfg.Fusion.StalenessOldHours = cfg.Fusion.StalenessFreshHours
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "fuse"
log_level = "debug"

[fusion]
interval = "10m"
price_floor = 0.02

[matcher]
similarity_floor = 0.8
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fuse", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.Fusion.Interval.Duration)
	assert.Equal(t, 0.02, cfg.Fusion.PriceFloor)
	assert.Equal(t, 0.8, cfg.Matcher.SimilarityFloor)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Matcher.TopK)
	assert.Equal(t, "0 3 * * *", cfg.Archive.Cron)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRYTHIA_MODE", "match")
	t.Setenv("PRYTHIA_GEMINI_API_KEY", "env-key")
	t.Setenv("PRYTHIA_FUSION_DEEP_SOURCES", "polymarket, kalshi ,manifold")
	t.Setenv("PRYTHIA_MATCHER_BUDGET", "2m")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "match", cfg.Mode)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
	assert.Equal(t, []string{"polymarket", "kalshi", "manifold"}, cfg.Fusion.DeepSources)
	assert.Equal(t, 2*time.Minute, cfg.Matcher.Budget.Duration)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Gemini.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Empty(t, red.Redis.Password, "empty secrets stay empty")

	// Originals untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
