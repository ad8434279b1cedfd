package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/openlecture/portal/config"
	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// IdentityServiceOptions groups dependencies for IdentityService.
type IdentityServiceOptions struct {
	Mode               config.AuthMode        // Required: authentication mode
	Resolver           ports.IdentityResolver // Required unless Mode is none
	Profiles           *ProfileCache          // Optional: write-behind profile sink
	TrustedExternalKey string                 // Optional: pre-shared key for trusted applications
	Logger             *slog.Logger           // Optional: structured logger
}

// IdentityService maps each incoming request to an AuthContext. The
// mode-specific work lives in the resolver wired by bootstrap; this
// service owns the parts common to every mode: the trusted-external
// short circuit, the anonymous fallback, and the profile write-behind.
type IdentityService struct {
	mode       config.AuthMode
	resolver   ports.IdentityResolver
	profiles   *ProfileCache
	trustedKey []byte // sha256 of the configured key, nil when unset
	logger     *slog.Logger
}

// NewIdentityService constructs a new IdentityService.
func NewIdentityService(opts IdentityServiceOptions) (*IdentityService, error) {
	if opts.Mode != config.AuthModeNone && opts.Resolver == nil {
		return nil, errors.New("IdentityResolver is required for auth mode " + string(opts.Mode))
	}

	var trustedKey []byte
	if opts.TrustedExternalKey != "" {
		sum := sha256.Sum256([]byte(opts.TrustedExternalKey))
		trustedKey = sum[:]
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "identity_service")
		logger.Debug("IdentityService initialized",
			"mode", opts.Mode,
			"trusted_external", trustedKey != nil,
		)
	}

	return &IdentityService{
		mode:       opts.Mode,
		resolver:   opts.Resolver,
		profiles:   opts.Profiles,
		trustedKey: trustedKey,
		logger:     logger,
	}, nil
}

// Authenticate determines who is behind the request.
//
// The trusted-external check runs first, in every mode: applications
// holding the pre-shared key are authenticated even when user login is
// disabled. Only a key matching the configured secret short-circuits;
// any other value, or a key presented when no secret is configured,
// falls through to normal mode-based resolution. After that, mode none
// short-circuits to anonymous and all other modes delegate to their
// resolver. Resolver errors (for example an unreachable callback)
// propagate to the caller untranslated.
func (s *IdentityService) Authenticate(r *http.Request) (domainauth.AuthContext, error) {
	ctx := r.Context()

	if given := r.Header.Get(domainauth.TrustedExternalHeader); given != "" && s.trustedKey != nil {
		sum := sha256.Sum256([]byte(given))
		if subtle.ConstantTimeCompare(sum[:], s.trustedKey) == 1 {
			return domainauth.TrustedExternal(), nil
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "trusted external key mismatch")
		}
	}

	if s.mode == config.AuthModeNone {
		return domainauth.Anonymous(), nil
	}

	user, err := s.resolver.Resolve(ctx, r)
	if err != nil {
		return domainauth.AuthContext{}, err
	}
	if user == nil {
		return domainauth.Anonymous(), nil
	}

	if s.profiles != nil {
		s.profiles.RefreshAsync(ctx, *user)
	}
	return domainauth.Identified(*user), nil
}
