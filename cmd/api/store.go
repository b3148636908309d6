package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/config"
	"github.com/BradenHooton/kamino-gate/internal/database"
	"github.com/BradenHooton/kamino-gate/internal/handlers"
	"github.com/BradenHooton/kamino-gate/internal/repositories"
	"github.com/BradenHooton/kamino-gate/internal/services"
	"github.com/redis/go-redis/v9"
)

// accountBackend is what the login core, the session endpoint and admin bootstrap need from a store
type accountBackend interface {
	services.AccountRepository
	services.UserRepository
	handlers.AccountReader
}

// attemptHistory is the optional login-attempt history (Postgres only)
type attemptHistory interface {
	services.LoginAttemptRepository
	DeleteExpiredAttempts(ctx context.Context, now time.Time) (int64, error)
}

type accountStore struct {
	accounts accountBackend
	attempts attemptHistory
	health   handlers.HealthChecker
	close    func()
}

func (s *accountStore) Close() {
	if s.close != nil {
		s.close()
	}
}

// openStore connects to the configured account store backend
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*accountStore, error) {
	switch cfg.Server.StoreDriver {
	case config.StoreDriverPostgres:
		return openPostgresStore(ctx, cfg, logger)
	case config.StoreDriverRedis:
		return openRedisStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Server.StoreDriver)
	}
}

func openPostgresStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*accountStore, error) {
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.MigrateOnStart {
		if err := db.MigratePool(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &accountStore{
		accounts: repositories.NewUserRepository(db),
		attempts: repositories.NewLoginAttemptRepository(db),
		health:   db,
		close:    db.Close,
	}, nil
}

func openRedisStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*accountStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	repo := repositories.NewRedisAccountRepository(client, cfg.Redis.KeyPrefix)
	if err := repo.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connection established", slog.String("addr", cfg.Redis.Addr))

	return &accountStore{
		accounts: repo,
		health:   repo,
		close: func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", slog.Any("error", err))
			}
		},
	}, nil
}
