// Command portal runs the identity core as a long-lived process: it
// validates configuration, applies migrations, wires the auth stack
// for the configured mode, and keeps the session maintenance loop
// running until shutdown.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/openlecture/portal/config"
	"github.com/openlecture/portal/internal/adapters/maintenance"
	"github.com/openlecture/portal/internal/bootstrap"
	"github.com/openlecture/portal/internal/observability/statsd"
)

func main() {
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "invalid configuration", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}

	logger := bootstrap.InitLogger(cfg.IsDev)
	if err := run(ctx, cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) error {
	logger = logger.With("instance", uuid.NewString()[:8])
	logger.InfoContext(ctx, "starting portal",
		"auth_mode", cfg.Auth.Mode,
		"session_backend", cfg.Auth.SessionBackend,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, redisClient, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.StatsDEnabled,
		Address: cfg.Observability.StatsDAddress,
		Prefix:  cfg.Observability.StatsDPrefix,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("connect statsd: %w", err)
	}
	defer func() {
		if cerr := metrics.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close statsd failed", "error", cerr)
		}
	}()

	stack, err := bootstrap.BuildAuth(bootstrap.BuildAuthOptions{
		Config: cfg.Auth,
		DB:     db,
		Redis:  redisClient,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("build auth stack: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if stack.Store != nil {
		runner, runnerErr := maintenance.NewRunner(maintenance.RunnerOptions{
			Store:           stack.Store,
			Config:          cfg.Maintenance,
			SessionDuration: cfg.Auth.SessionDuration,
			Logger:          logger,
			Metrics:         metrics,
			DB:              db,
		})
		if runnerErr != nil {
			return fmt.Errorf("build maintenance runner: %w", runnerErr)
		}
		group.Go(func() error { return runner.Run(groupCtx) })
	} else {
		logger.InfoContext(ctx, "session maintenance disabled",
			"reason", "auth mode has no session store")
	}

	// Block until shutdown or a service failure.
	group.Go(func() error {
		<-groupCtx.Done()
		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}
	logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// initInfrastructure connects shared dependencies. Redis is only
// dialed when the redis session backend is configured.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	var redisClient redis.UniversalClient
	if cfg.Auth.Mode.UsesSessions() && cfg.Auth.SessionBackend == config.SessionStoreRedis {
		redisClient, err = bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			DBConfig:    cfg.Postgres,
			RedisConfig: cfg.Redis,
			Logger:      logger,
		})
		if err != nil {
			if cerr := db.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
			}
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	return db, redisClient, nil
}
