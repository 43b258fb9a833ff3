// Package bootstrap opens the storage backend and the optional side channels selected by config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/credit_ledger_app/internal/adapters/cache"
	"github.com/SscSPs/credit_ledger_app/internal/adapters/events"
	"github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	"github.com/SscSPs/credit_ledger_app/internal/core/services"
	"github.com/SscSPs/credit_ledger_app/internal/platform/config"
	"github.com/SscSPs/credit_ledger_app/internal/repositories/database/pgsql"
	"github.com/SscSPs/credit_ledger_app/internal/repositories/memory"
	"github.com/SscSPs/credit_ledger_app/migrations"
	"github.com/SscSPs/credit_ledger_app/pkg/database"
)

// Closer releases a resource opened during bootstrap.
type Closer func()

// OpenRepositories connects to the configured storage driver. For PostgreSQL the schema is
// migrated first when migrate is set.
func OpenRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (repositories.RepositoryProvider, Closer, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("Using in-memory storage; balances are lost on restart")
		return memory.NewRepositoryProvider(memory.NewStore()), func() {}, nil
	}

	if migrate {
		logger.Info("Running database migrations...")
		if err := migrations.Up(cfg.DatabaseURL, logger); err != nil {
			return repositories.RepositoryProvider{}, nil, err
		}
	}

	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		return repositories.RepositoryProvider{}, nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}
	logger.Info("Database connection pool established.")
	return pgsql.NewRepositoryProvider(pool), pool.Close, nil
}

// LedgerSideChannels builds the balance cache and event publisher options. Unconfigured
// channels are left out. The returned Closer flushes the publisher and closes redis.
func LedgerSideChannels(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]services.LedgerServiceOption, Closer, error) {
	var (
		opts    []services.LedgerServiceOption
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Error("Error closing redis client", slog.String("error", err.Error()))
			}
		})
		opts = append(opts, services.WithBalanceCache(cache.NewRedisBalanceCache(client, cfg.BalanceCacheTTL)))
		logger.Info("Balance cache enabled", slog.Duration("ttl", cfg.BalanceCacheTTL))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Error("Error closing event publisher", slog.String("error", err.Error()))
			}
		})
		opts = append(opts, services.WithEventPublisher(publisher))
		logger.Info("Ledger events enabled", slog.String("topic", cfg.KafkaTopic))
	} else {
		opts = append(opts, services.WithEventPublisher(events.NoopPublisher{}))
	}

	return opts, closeAll, nil
}
