// Package callback resolves identities by forwarding request context to
// an external HTTP endpoint that acts as the trust anchor.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// ErrGateway is wrapped by every upstream failure: the endpoint being
// unreachable, answering with a non-200 status, timing out, or sending
// a body that does not parse. The callback is a required trust anchor,
// not optional enrichment, so callers must abort the request with a
// Bad-Gateway response rather than downgrade to anonymous.
var ErrGateway = errors.New("auth callback unavailable")

// maxResponseBytes bounds how much of the callback response is read.
const maxResponseBytes = 1 << 20

// DefaultTimeout bounds a single callback round trip when no timeout is
// configured. An unresponsive endpoint must not hold request resources
// indefinitely.
const DefaultTimeout = 5 * time.Second

// Options groups dependencies for the callback resolver.
type Options struct {
	// Endpoint is the callback URL. It must not contain a query or
	// fragment part; those are rejected here, at construction time.
	Endpoint string

	// Client is the pooled HTTP client to use. Defaults to
	// http.DefaultClient.
	Client *http.Client

	// Timeout per callback call. Defaults to DefaultTimeout. Expiry is
	// treated exactly like a transport failure.
	Timeout time.Duration

	UserRolePrefixes []string
	Logger           *slog.Logger
}

// Resolver forwards the inbound request's method and headers to the
// configured endpoint and parses its verdict.
type Resolver struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	prefixes []string
	logger   *slog.Logger
}

var _ ports.IdentityResolver = (*Resolver)(nil)

// New validates the endpoint and creates a resolver.
func New(opts Options) (*Resolver, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse callback url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("callback url must be http or https, got %q", opts.Endpoint)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("callback url must not contain a query or fragment part")
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		endpoint: u.String(),
		client:   client,
		timeout:  timeout,
		prefixes: opts.UserRolePrefixes,
		logger:   logger.With("component", "auth_callback"),
	}, nil
}

// verdict is the wire shape of the callback response body. This is a
// public API of the callback protocol and has to stay stable.
type verdict struct {
	Outcome     string    `json:"outcome"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Email       *string   `json:"email"`
	Roles       *[]string `json:"roles"`
}

// Resolve sends the inbound request's method and headers to the
// endpoint with an empty body and interprets the JSON verdict.
func (c *Resolver) Resolve(ctx context.Context, r *http.Request) (*domainauth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := http.NewRequestWithContext(ctx, r.Method, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build callback request: %w", err)
	}
	out.Header = r.Header.Clone()

	resp, err := c.client.Do(out)
	if err != nil {
		c.logger.Error("error contacting auth callback", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("error reading auth callback response", "error", err)
		return nil, fmt.Errorf("%w: read body: %w", ErrGateway, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("auth callback replied with unexpected status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode)
	}

	var v verdict
	if err := json.Unmarshal(body, &v); err != nil {
		c.logger.Error("could not deserialize auth callback response", "error", err)
		return nil, fmt.Errorf("%w: decode body: %w", ErrGateway, err)
	}

	switch v.Outcome {
	case "no-user":
		return nil, nil
	case "user":
		return c.userFromVerdict(v)
	default:
		c.logger.Error("auth callback returned unknown outcome", "outcome", v.Outcome)
		return nil, fmt.Errorf("%w: unknown outcome %q", ErrGateway, v.Outcome)
	}
}

func (c *Resolver) userFromVerdict(v verdict) (*domainauth.User, error) {
	if v.Username == "" || v.DisplayName == "" || v.Roles == nil {
		c.logger.Error("auth callback user verdict is missing required fields")
		return nil, fmt.Errorf("%w: incomplete user verdict", ErrGateway)
	}

	roles := domainauth.NewRoleSet(*v.Roles...)
	userRole, matches := domainauth.DeriveUserRole(roles, c.prefixes)
	switch {
	case matches == 0:
		// The callback vouched for this user but gave them no user
		// role. Treat it like "no user" instead of failing the
		// request: the input is attacker-influenced and must never
		// crash the request path.
		c.logger.Error("callback user has no user role, but needs exactly one; "+
			"check the user role prefixes and the callback implementation",
			"username", v.Username)
		return nil, nil
	case matches > 1:
		c.logger.Warn("callback user has multiple user roles; picking the first in sorted order",
			"username", v.Username, "user_role", userRole, "matches", matches)
	}

	return &domainauth.User{
		Username:    v.Username,
		DisplayName: v.DisplayName,
		Email:       v.Email,
		Roles:       roles,
		UserRole:    userRole,
	}, nil
}
