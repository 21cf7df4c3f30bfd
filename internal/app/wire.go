package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stevenchzhen/prythia/internal/ai"
	s3blob "github.com/stevenchzhen/prythia/internal/blob/s3"
	"github.com/stevenchzhen/prythia/internal/cache/redis"
	"github.com/stevenchzhen/prythia/internal/config"
	"github.com/stevenchzhen/prythia/internal/domain"
	"github.com/stevenchzhen/prythia/internal/notify"
	"github.com/stevenchzhen/prythia/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	EventStore      domain.EventStore
	ContractStore   domain.ContractStore
	SnapshotStore   domain.SnapshotStore
	DivergenceStore domain.DivergenceStore
	MappingStore    domain.MappingStore

	// Coordination
	LockManager domain.LockManager

	// AI
	Embedder domain.Embedder
	Verifier domain.Verifier

	// Cold storage, nil when archival is disabled.
	ColdArchiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsGemini returns true for modes that run the matcher.
func needsGemini(mode string) bool {
	switch mode {
	case "match", "full", "once":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.EventStore = postgres.NewEventStore(pool)
	deps.ContractStore = postgres.NewContractStore(pool)
	deps.SnapshotStore = postgres.NewSnapshotStore(pool)
	deps.DivergenceStore = postgres.NewDivergenceStore(pool)
	deps.MappingStore = postgres.NewMappingStore(pool)

	// --- Run locks: Redis when enabled, in-process otherwise ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		deps.LockManager = newLocalLockManager()
	}

	// --- Gemini (only for modes that run the matcher) ---
	if needsGemini(cfg.Mode) {
		aiClient, err := ai.NewClient(ctx, cfg.Gemini, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: gemini: %w", err)
		}
		deps.Embedder = aiClient
		deps.Verifier = aiClient
	}

	// --- S3 cold storage (only when archival is enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.ColdArchiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.SnapshotStore,
			deps.DivergenceStore,
			cfg.Archive.BatchSize,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
