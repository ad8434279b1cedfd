package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/openlecture/portal/config"
	"github.com/openlecture/portal/internal/observability/statsd"
	"github.com/openlecture/portal/internal/ports"
)

// MaintenanceServiceOptions groups dependencies for MaintenanceService.
type MaintenanceServiceOptions struct {
	Store           ports.SessionStore // Required: session persistence
	Config          config.MaintenanceConfig
	SessionDuration time.Duration // Required: sessions at or past this age are purged
	Logger          *slog.Logger  // Optional: structured logger
	Metrics         statsd.Sink   // Optional: metrics sink (StatsD-compatible)
}

// MaintenanceService periodically removes expired sessions. Lookups
// already enforce expiry, so the sweep only bounds storage growth; a
// missed tick is harmless.
type MaintenanceService struct {
	store           ports.SessionStore
	config          config.MaintenanceConfig
	sessionDuration time.Duration
	logger          *slog.Logger
	metrics         statsd.Sink
}

// NewMaintenanceService constructs a new MaintenanceService.
func NewMaintenanceService(opts MaintenanceServiceOptions) (*MaintenanceService, error) {
	if opts.Store == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.SessionDuration <= 0 {
		return nil, errors.New("session duration must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "maintenance_service")
	}

	return &MaintenanceService{
		store:           opts.Store,
		config:          opts.Config,
		sessionDuration: opts.SessionDuration,
		logger:          logger,
		metrics:         opts.Metrics,
	}, nil
}

// Run starts the maintenance loop and runs until the context is
// cancelled. Returns nil on graceful shutdown (context.Canceled),
// error otherwise.
func (s *MaintenanceService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting maintenance service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run a sweep immediately after jitter
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "maintenance service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep purges expired sessions once. Errors are logged and swallowed;
// the loop keeps running.
func (s *MaintenanceService) sweep(ctx context.Context) {
	start := time.Now()
	purged, err := s.store.PurgeExpired(ctx, s.sessionDuration)
	if s.metrics != nil {
		s.metrics.Timing("maintenance.sweep", time.Since(start), nil)
	}
	if err != nil {
		if s.logger != nil && !errors.Is(err, context.Canceled) {
			s.logger.ErrorContext(ctx, "failed to purge expired sessions", "error", err)
		}
		if s.metrics != nil {
			s.metrics.Count("maintenance.sweep_errors", 1, nil)
		}
		return
	}
	if s.metrics != nil && purged > 0 {
		s.metrics.Count("sessions.purged", purged, nil)
	}
	if s.logger == nil {
		return
	}
	if purged == 0 {
		s.logger.DebugContext(ctx, "no expired sessions to purge")
	} else {
		s.logger.InfoContext(ctx, "purged expired sessions", "count", purged)
	}
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *MaintenanceService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}
