package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/openlecture/portal/config"
	"github.com/openlecture/portal/internal/adapters/callback"
	"github.com/openlecture/portal/internal/adapters/proxyheaders"
	"github.com/openlecture/portal/internal/adapters/redisstore"
	"github.com/openlecture/portal/internal/adapters/sessioncookie"
	"github.com/openlecture/portal/internal/data"
	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
	"github.com/openlecture/portal/internal/service"
)

// AuthStack bundles everything the serving layer needs for identity
// and authorization.
type AuthStack struct {
	// Identity maps incoming requests to an AuthContext.
	Identity *service.IdentityService

	// Sessions creates and destroys login sessions. Nil unless the
	// configured mode stores authenticated state in a session cookie.
	Sessions *service.SessionService

	// LoginResolver determines the user during login. Nil unless the
	// mode uses sessions; the login handlers feed its result to
	// Sessions.Login.
	LoginResolver ports.IdentityResolver

	// Store is the session store behind Sessions, exposed for the
	// maintenance loop. Nil unless the mode uses sessions.
	Store ports.SessionStore

	// Roles evaluates capability checks against the configured roles.
	Roles domainauth.RoleConfig
}

// BuildAuthOptions holds the dependencies for BuildAuth.
type BuildAuthOptions struct {
	Config config.AuthConfig
	DB     *sql.DB               // Required unless mode none with no directory writes
	Redis  redis.UniversalClient // Required for the redis session backend
	Logger *slog.Logger
}

// BuildAuth wires the identity stack for the configured auth mode. The
// mode switch here is exhaustive: a new mode does not compile until it
// is wired.
func BuildAuth(opts BuildAuthOptions) (*AuthStack, error) {
	cfg := opts.Config

	roles := domainauth.RoleConfig{
		ModeratorRole: cfg.Roles.Moderator,
		UploadRole:    cfg.Roles.Upload,
		StudioRole:    cfg.Roles.Studio,
		EditorRole:    cfg.Roles.Editor,
		UserRealmRole: cfg.Roles.UserRealm,
	}

	stack := &AuthStack{Roles: roles}

	var profiles *service.ProfileCache
	if cfg.Mode != config.AuthModeNone {
		if opts.DB == nil {
			return nil, errors.New("database connection is required for auth mode " + string(cfg.Mode))
		}
		var err error
		profiles, err = service.NewProfileCache(service.ProfileCacheOptions{
			Directory: data.NewUserRepo(opts.DB),
			Logger:    opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("wire profile cache: %w", err)
		}
	}

	headerExtractor := func() *proxyheaders.Extractor {
		return proxyheaders.New(proxyheaders.Config{
			UsernameHeader:    cfg.Headers.Username,
			DisplayNameHeader: cfg.Headers.DisplayName,
			EmailHeader:       cfg.Headers.Email,
			RolesHeader:       cfg.Headers.Roles,
			UserRolePrefixes:  cfg.UserRolePrefixes,
		}, opts.Logger)
	}
	callbackResolver := func() (*callback.Resolver, error) {
		return callback.New(callback.Options{
			Endpoint:         cfg.Callback.URL,
			Timeout:          cfg.Callback.Timeout,
			UserRolePrefixes: cfg.UserRolePrefixes,
			Logger:           opts.Logger,
		})
	}

	var requestResolver ports.IdentityResolver
	switch cfg.Mode {
	case config.AuthModeNone:
		// No resolver: every request is anonymous or trusted-external.

	case config.AuthModeHeaderProxy:
		requestResolver = headerExtractor()

	case config.AuthModeAuthCallback:
		resolver, err := callbackResolver()
		if err != nil {
			return nil, fmt.Errorf("wire auth callback: %w", err)
		}
		requestResolver = resolver

	case config.AuthModeLoginProxy, config.AuthModeLoginCallback:
		store, err := buildSessionStore(opts)
		if err != nil {
			return nil, err
		}
		stack.Store = store

		cookieResolver, err := sessioncookie.New(sessioncookie.Options{
			Store:            store,
			SessionDuration:  cfg.SessionDuration,
			UserRolePrefixes: cfg.UserRolePrefixes,
			Logger:           opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("wire session cookie resolver: %w", err)
		}
		requestResolver = cookieResolver

		if cfg.Mode == config.AuthModeLoginProxy {
			stack.LoginResolver = headerExtractor()
		} else {
			loginResolver, cbErr := callbackResolver()
			if cbErr != nil {
				return nil, fmt.Errorf("wire login callback: %w", cbErr)
			}
			stack.LoginResolver = loginResolver
		}

		stack.Sessions, err = service.NewSessionService(service.SessionServiceOptions{
			Store:    store,
			Profiles: profiles,
			Logger:   opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("wire session service: %w", err)
		}

	default:
		return nil, fmt.Errorf("unhandled auth mode %q", cfg.Mode)
	}

	identity, err := service.NewIdentityService(service.IdentityServiceOptions{
		Mode:               cfg.Mode,
		Resolver:           requestResolver,
		Profiles:           profiles,
		TrustedExternalKey: cfg.TrustedExternalKey,
		Logger:             opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire identity service: %w", err)
	}
	stack.Identity = identity

	return stack, nil
}

// buildSessionStore selects the session store backend.
func buildSessionStore(opts BuildAuthOptions) (ports.SessionStore, error) {
	switch opts.Config.SessionBackend {
	case config.SessionStoreRedis:
		if opts.Redis == nil {
			return nil, errors.New("redis connection is required for the redis session backend")
		}
		return redisstore.New(opts.Redis, opts.Config.SessionDuration), nil
	case config.SessionStorePostgres, "":
		if opts.DB == nil {
			return nil, errors.New("database connection is required for the postgres session backend")
		}
		return data.NewSessionRepo(opts.DB), nil
	default:
		return nil, fmt.Errorf("unhandled session backend %q", opts.Config.SessionBackend)
	}
}
