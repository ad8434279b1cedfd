// Package proxyheaders resolves identities from the headers a trusted
// reverse proxy sets on every inbound request.
package proxyheaders

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/headercodec"
	"github.com/openlecture/portal/internal/ports"
)

// Config names the headers to read and the prefixes identifying user
// roles. All header values are base64url-encoded by the proxy.
type Config struct {
	UsernameHeader    string
	DisplayNameHeader string
	EmailHeader       string
	RolesHeader       string
	UserRolePrefixes  []string
}

// Extractor decodes proxy identity headers into a candidate user. It is
// a pure decode and performs no I/O; malformed or missing headers are
// common proxy misconfiguration, not attacks, so they degrade to "no
// identity" with a logged warning instead of failing the request.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

var _ ports.IdentityResolver = (*Extractor)(nil)

// New creates a header identity extractor.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, logger: logger.With("component", "proxyheaders")}
}

// Resolve never returns an error: every failure mode here is a soft
// degrade to anonymous.
func (e *Extractor) Resolve(_ context.Context, r *http.Request) (*domainauth.User, error) {
	username, ok := e.header(r.Header, e.cfg.UsernameHeader)
	if !ok {
		return nil, nil
	}
	displayName, ok := e.header(r.Header, e.cfg.DisplayNameHeader)
	if !ok {
		return nil, nil
	}

	var email *string
	if v, ok := e.header(r.Header, e.cfg.EmailHeader); ok {
		email = &v
	}

	rawRoles := r.Header.Get(e.cfg.RolesHeader)
	if rawRoles == "" {
		return nil, nil
	}
	roleList, err := headercodec.DecodeList(rawRoles)
	if err != nil {
		e.logger.Warn("roles header is set but cannot be decoded",
			"header", e.cfg.RolesHeader, "error", err)
		return nil, nil
	}

	// Everyone implicitly holds the anonymous role.
	roles := domainauth.NewRoleSet(domainauth.RoleAnonymous)
	for _, role := range roleList {
		roles.Add(role)
	}

	userRole, matches := domainauth.DeriveUserRole(roles, e.cfg.UserRolePrefixes)
	switch {
	case matches == 0:
		e.logger.Warn("user has no user role, but needs exactly one; "+
			"check the user role prefixes and your auth integration",
			"username", username)
		return nil, nil
	case matches > 1:
		e.logger.Warn("user has multiple user roles but there should be "+
			"only one per user; picking the first in sorted order",
			"username", username, "user_role", userRole, "matches", matches)
	}

	return &domainauth.User{
		Username:    username,
		DisplayName: displayName,
		Email:       email,
		Roles:       roles,
		UserRole:    userRole,
	}, nil
}

// header reads and decodes one base64url header value. Absent headers
// return false silently; present but malformed values are logged.
func (e *Extractor) header(h http.Header, name string) (string, bool) {
	v := h.Get(name)
	if v == "" {
		return "", false
	}
	decoded, err := headercodec.DecodeString(v)
	if err != nil {
		e.logger.Warn("header is set but cannot be decoded", "header", name, "error", err)
		return "", false
	}
	return decoded, true
}
