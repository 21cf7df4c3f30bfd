// Package config defines the top-level configuration for the prythia fusion
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PRYTHIA_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Fusion   FusionConfig   `toml:"fusion"`
	Matcher  MatcherConfig  `toml:"matcher"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the run-lock layer.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// GeminiConfig holds credentials and model names for the embedding and
// verification services.
type GeminiConfig struct {
	APIKey      string `toml:"api_key"`
	EmbedModel  string `toml:"embed_model"`
	VerifyModel string `toml:"verify_model"`
	// EmbedDim truncates embedding output to this dimensionality. It must
	// match the vector column width in the store.
	EmbedDim int `toml:"embed_dim"`
}

// FusionConfig holds the tunable constants of the per-event aggregation pass.
// The numeric defaults are heuristics, not load-bearing constants; operators
// may retune them per deployment.
type FusionConfig struct {
	// PriceFloor is the minimum price used when converting contract-count
	// volume to notional, so a near-zero price cannot zero out a source.
	PriceFloor float64 `toml:"price_floor"`

	// StalenessFreshHours and StalenessOldHours bound the three staleness
	// tiers: full weight below fresh, StaleWeight between fresh and old,
	// VeryStaleWeight beyond old.
	StalenessFreshHours int     `toml:"staleness_fresh_hours"`
	StalenessOldHours   int     `toml:"staleness_old_hours"`
	StaleWeight         float64 `toml:"stale_weight"`
	VeryStaleWeight     float64 `toml:"very_stale_weight"`

	// Quality score shape.
	VolumeDepthCap     float64 `toml:"volume_depth_cap"`
	SourceDiversityCap int     `toml:"source_diversity_cap"`
	SpreadTight        float64 `toml:"spread_tight"`
	SpreadWide         float64 `toml:"spread_wide"`

	// ContractUnitSources lists sources that report raw contract counts
	// instead of notional volume. DeepSources lists sources considered deep
	// markets for the quality score.
	ContractUnitSources []string `toml:"contract_unit_sources"`
	DeepSources         []string `toml:"deep_sources"`

	// Fleet pass shape.
	Concurrency int      `toml:"concurrency"`
	Interval    duration `toml:"interval"`
	Budget      duration `toml:"budget"`
}

// MatcherConfig holds the tunable constants of the cross-source matcher.
type MatcherConfig struct {
	SimilarityFloor float64 `toml:"similarity_floor"`
	TopK            int     `toml:"top_k"`

	// EmbedBatchSize is the number of texts per embedding request;
	// EventBacklog and ContractBacklog bound how many unembedded rows one
	// run picks up.
	EmbedBatchSize  int `toml:"embed_batch_size"`
	EventBacklog    int `toml:"event_backlog"`
	ContractBacklog int `toml:"contract_backlog"`
	MatchBacklog    int `toml:"match_backlog"`

	// EmbedBudgetShare is the fraction of the run budget spent on the
	// embedding phase; the matching phase gets the remainder.
	EmbedBudgetShare float64 `toml:"embed_budget_share"`

	// Agent is recorded on mapping rows as the producing agent.
	Agent string `toml:"agent"`

	MaxRetries int      `toml:"max_retries"`
	Interval   duration `toml:"interval"`
	Budget     duration `toml:"budget"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
	BatchSize     int    `toml:"batch_size"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "prythia",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "prythia-cold",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Gemini: GeminiConfig{
			EmbedModel:  "gemini-embedding-001",
			VerifyModel: "gemini-2.0-flash",
			EmbedDim:    768,
		},
		Fusion: FusionConfig{
			PriceFloor:          0.01,
			StalenessFreshHours: 24,
			StalenessOldHours:   72,
			StaleWeight:         0.5,
			VeryStaleWeight:     0.2,
			VolumeDepthCap:      1_000_000,
			SourceDiversityCap:  3,
			SpreadTight:         0.02,
			SpreadWide:          0.15,
			ContractUnitSources: []string{"kalshi"},
			DeepSources:         []string{"polymarket", "kalshi"},
			Concurrency:         4,
			Interval:            duration{5 * time.Minute},
			Budget:              duration{4 * time.Minute},
		},
		Matcher: MatcherConfig{
			SimilarityFloor:  0.70,
			TopK:             3,
			EmbedBatchSize:   50,
			EventBacklog:     500,
			ContractBacklog:  1000,
			MatchBacklog:     200,
			EmbedBudgetShare: 0.6,
			Agent:            "prythia-matcher",
			MaxRetries:       3,
			Interval:         duration{15 * time.Minute},
			Budget:           duration{10 * time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 * * *",
			BatchSize:     5000,
		},
		Notify: NotifyConfig{
			Events: []string{"fusion_complete", "match_complete", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"fuse":  true,
	"match": true,
	"full":  true,
	"once":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: fuse, match, full, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// S3 — only needed when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Gemini — required by matching modes.
	needsAI := c.Mode == "match" || c.Mode == "full" || c.Mode == "once"
	if needsAI && c.Gemini.APIKey == "" {
		errs = append(errs, "gemini: api_key is required for mode "+c.Mode)
	}
	if c.Gemini.EmbedDim < 1 {
		errs = append(errs, "gemini: embed_dim must be >= 1")
	}

	// Fusion
	if c.Fusion.PriceFloor <= 0 || c.Fusion.PriceFloor >= 1 {
		errs = append(errs, fmt.Sprintf("fusion: price_floor must be in (0,1), got %g", c.Fusion.PriceFloor))
	}
	if c.Fusion.StalenessFreshHours <= 0 || c.Fusion.StalenessOldHours <= c.Fusion.StalenessFreshHours {
		errs = append(errs, "fusion: staleness cutoffs must satisfy 0 < fresh < old")
	}
	if c.Fusion.VolumeDepthCap <= 0 {
		errs = append(errs, "fusion: volume_depth_cap must be > 0")
	}
	if c.Fusion.SourceDiversityCap < 1 {
		errs = append(errs, "fusion: source_diversity_cap must be >= 1")
	}
	if c.Fusion.SpreadWide <= c.Fusion.SpreadTight {
		errs = append(errs, "fusion: spread_wide must exceed spread_tight")
	}
	if c.Fusion.Concurrency < 1 {
		errs = append(errs, "fusion: concurrency must be >= 1")
	}

	// Matcher
	if c.Matcher.SimilarityFloor <= 0 || c.Matcher.SimilarityFloor >= 1 {
		errs = append(errs, fmt.Sprintf("matcher: similarity_floor must be in (0,1), got %g", c.Matcher.SimilarityFloor))
	}
	if c.Matcher.TopK < 1 {
		errs = append(errs, "matcher: top_k must be >= 1")
	}
	if c.Matcher.EmbedBatchSize < 1 {
		errs = append(errs, "matcher: embed_batch_size must be >= 1")
	}
	if c.Matcher.EmbedBudgetShare <= 0 || c.Matcher.EmbedBudgetShare >= 1 {
		errs = append(errs, "matcher: embed_budget_share must be in (0,1)")
	}
	if c.Matcher.Agent == "" {
		errs = append(errs, "matcher: agent must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
