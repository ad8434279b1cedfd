package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Store    ports.SessionStore // Required: session persistence
	Profiles *ProfileCache      // Optional: write-behind profile sink
	Logger   *slog.Logger       // Optional: structured logger
}

// SessionService creates and destroys login sessions. The login
// handlers own cookie handling; this service only deals in session ids.
type SessionService struct {
	store    ports.SessionStore
	profiles *ProfileCache
	logger   *slog.Logger
}

// NewSessionService constructs a new SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Store == nil {
		return nil, errors.New("SessionStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "session_service")
	}

	return &SessionService{
		store:    opts.Store,
		profiles: opts.Profiles,
		logger:   logger,
	}, nil
}

// Login persists a new session for the user and returns its id. The
// caller puts the id into the session cookie. The user's profile is
// pushed to the directory on the side, so the directory reflects users
// who logged in but never issued an authenticated request.
func (s *SessionService) Login(ctx context.Context, user domainauth.User) (string, error) {
	id, err := s.store.Create(ctx, user)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "user logged in", "username", user.Username)
	}
	if s.profiles != nil {
		s.profiles.RefreshAsync(ctx, user)
	}
	return id, nil
}

// Logout removes the session. Unknown ids are not an error: the
// session may have expired or been purged already, and the outcome the
// client asked for holds either way.
func (s *SessionService) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "user logged out")
	}
	return nil
}
