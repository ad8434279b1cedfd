// Package maintenance provides the adapter for running the session
// maintenance loop against the configured session store.
package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlecture/portal/config"
	"github.com/openlecture/portal/internal/data"
	"github.com/openlecture/portal/internal/observability/statsd"
	"github.com/openlecture/portal/internal/ports"
	"github.com/openlecture/portal/internal/service"
)

// Runner constructs the maintenance service over the session store and
// runs its loop.
type Runner struct {
	maintenance *service.MaintenanceService
	logger      *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB              *sql.DB
	Config          config.MaintenanceConfig
	SessionDuration time.Duration
	Logger          *slog.Logger

	// Optional dependency injection for testing/decoupling
	Store   ports.SessionStore
	Metrics statsd.Sink
}

// NewRunner creates a new maintenance runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil && opts.DB == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	store := opts.Store
	if store == nil {
		store = data.NewSessionRepo(opts.DB)
	}

	svc, err := service.NewMaintenanceService(service.MaintenanceServiceOptions{
		Store:           store,
		Config:          opts.Config,
		SessionDuration: opts.SessionDuration,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire maintenance service: %w", err)
	}

	return &Runner{maintenance: svc, logger: opts.Logger}, nil
}

// Run starts the maintenance loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting maintenance runner")
	return r.maintenance.Run(ctx)
}
