package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PRYTHIA_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRYTHIA_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PRYTHIA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PRYTHIA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PRYTHIA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PRYTHIA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PRYTHIA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PRYTHIA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PRYTHIA_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PRYTHIA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PRYTHIA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PRYTHIA_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PRYTHIA_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PRYTHIA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRYTHIA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRYTHIA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PRYTHIA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PRYTHIA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PRYTHIA_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PRYTHIA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PRYTHIA_S3_REGION")
	setStr(&cfg.S3.Bucket, "PRYTHIA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PRYTHIA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PRYTHIA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PRYTHIA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PRYTHIA_S3_FORCE_PATH_STYLE")

	// ── Gemini ──
	setStr(&cfg.Gemini.APIKey, "PRYTHIA_GEMINI_API_KEY")
	setStr(&cfg.Gemini.APIKey, "GEMINI_API_KEY") // compatibility alias
	setStr(&cfg.Gemini.EmbedModel, "PRYTHIA_GEMINI_EMBED_MODEL")
	setStr(&cfg.Gemini.VerifyModel, "PRYTHIA_GEMINI_VERIFY_MODEL")
	setInt(&cfg.Gemini.EmbedDim, "PRYTHIA_GEMINI_EMBED_DIM")

	// ── Fusion ──
	setFloat64(&cfg.Fusion.PriceFloor, "PRYTHIA_FUSION_PRICE_FLOOR")
	setInt(&cfg.Fusion.StalenessFreshHours, "PRYTHIA_FUSION_STALENESS_FRESH_HOURS")
	setInt(&cfg.Fusion.StalenessOldHours, "PRYTHIA_FUSION_STALENESS_OLD_HOURS")
	setFloat64(&cfg.Fusion.StaleWeight, "PRYTHIA_FUSION_STALE_WEIGHT")
	setFloat64(&cfg.Fusion.VeryStaleWeight, "PRYTHIA_FUSION_VERY_STALE_WEIGHT")
	setFloat64(&cfg.Fusion.VolumeDepthCap, "PRYTHIA_FUSION_VOLUME_DEPTH_CAP")
	setInt(&cfg.Fusion.SourceDiversityCap, "PRYTHIA_FUSION_SOURCE_DIVERSITY_CAP")
	setFloat64(&cfg.Fusion.SpreadTight, "PRYTHIA_FUSION_SPREAD_TIGHT")
	setFloat64(&cfg.Fusion.SpreadWide, "PRYTHIA_FUSION_SPREAD_WIDE")
	setStringSlice(&cfg.Fusion.ContractUnitSources, "PRYTHIA_FUSION_CONTRACT_UNIT_SOURCES")
	setStringSlice(&cfg.Fusion.DeepSources, "PRYTHIA_FUSION_DEEP_SOURCES")
	setInt(&cfg.Fusion.Concurrency, "PRYTHIA_FUSION_CONCURRENCY")
	setDuration(&cfg.Fusion.Interval, "PRYTHIA_FUSION_INTERVAL")
	setDuration(&cfg.Fusion.Budget, "PRYTHIA_FUSION_BUDGET")

	// ── Matcher ──
	setFloat64(&cfg.Matcher.SimilarityFloor, "PRYTHIA_MATCHER_SIMILARITY_FLOOR")
	setInt(&cfg.Matcher.TopK, "PRYTHIA_MATCHER_TOP_K")
	setInt(&cfg.Matcher.EmbedBatchSize, "PRYTHIA_MATCHER_EMBED_BATCH_SIZE")
	setInt(&cfg.Matcher.EventBacklog, "PRYTHIA_MATCHER_EVENT_BACKLOG")
	setInt(&cfg.Matcher.ContractBacklog, "PRYTHIA_MATCHER_CONTRACT_BACKLOG")
	setInt(&cfg.Matcher.MatchBacklog, "PRYTHIA_MATCHER_MATCH_BACKLOG")
	setFloat64(&cfg.Matcher.EmbedBudgetShare, "PRYTHIA_MATCHER_EMBED_BUDGET_SHARE")
	setStr(&cfg.Matcher.Agent, "PRYTHIA_MATCHER_AGENT")
	setInt(&cfg.Matcher.MaxRetries, "PRYTHIA_MATCHER_MAX_RETRIES")
	setDuration(&cfg.Matcher.Interval, "PRYTHIA_MATCHER_INTERVAL")
	setDuration(&cfg.Matcher.Budget, "PRYTHIA_MATCHER_BUDGET")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PRYTHIA_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "PRYTHIA_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "PRYTHIA_ARCHIVE_CRON")
	setInt(&cfg.Archive.BatchSize, "PRYTHIA_ARCHIVE_BATCH_SIZE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PRYTHIA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PRYTHIA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PRYTHIA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PRYTHIA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PRYTHIA_MODE")
	setStr(&cfg.LogLevel, "PRYTHIA_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
