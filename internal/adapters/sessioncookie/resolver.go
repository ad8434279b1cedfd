// Package sessioncookie resolves identities from the server-side
// session referenced by the session cookie.
package sessioncookie

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// Options groups dependencies for the session resolver.
type Options struct {
	Store ports.SessionStore

	// SessionDuration is the maximum session age; older sessions are
	// treated as nonexistent regardless of maintenance sweeps.
	SessionDuration time.Duration

	UserRolePrefixes []string
	Logger           *slog.Logger
}

// Resolver reads the session cookie and consults the session store.
type Resolver struct {
	store    ports.SessionStore
	maxAge   time.Duration
	prefixes []string
	logger   *slog.Logger
}

var _ ports.IdentityResolver = (*Resolver)(nil)

// New creates a session identity resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.SessionDuration <= 0 {
		return nil, errors.New("session duration must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    opts.Store,
		maxAge:   opts.SessionDuration,
		prefixes: opts.UserRolePrefixes,
		logger:   logger.With("component", "session_resolver"),
	}, nil
}

// Resolve looks up the session named by the cookie. An absent cookie or
// an unknown/expired session is "no identity", not an error; only
// storage failures abort the request.
func (s *Resolver) Resolve(ctx context.Context, r *http.Request) (*domainauth.User, error) {
	cookie, err := r.Cookie(domainauth.SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	sess, err := s.store.Lookup(ctx, cookie.Value, s.maxAge)
	if err != nil {
		return nil, fmt.Errorf("look up session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}

	roles := domainauth.NewRoleSet(sess.Roles...)
	userRole, matches := domainauth.DeriveUserRole(roles, s.prefixes)
	switch {
	case matches == 0:
		// Sessions are only created for users that had a user role, so
		// this means the prefix configuration changed after the fact
		// or the row was corrupted. Degrade instead of failing the
		// request; the user simply has to log in again.
		s.logger.Error("stored session has no user role; treating as logged out",
			"username", sess.Username)
		return nil, nil
	case matches > 1:
		s.logger.Warn("stored session has multiple user roles; picking the first in sorted order",
			"username", sess.Username, "user_role", userRole, "matches", matches)
	}

	return &domainauth.User{
		Username:    sess.Username,
		DisplayName: sess.DisplayName,
		Email:       sess.Email,
		Roles:       roles,
		UserRole:    userRole,
	}, nil
}
