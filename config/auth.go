package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthMode selects how incoming requests are mapped to users.
type AuthMode string

const (
	// AuthModeNone disables user authentication entirely. Every request
	// is anonymous unless it carries the trusted-external key.
	AuthModeNone AuthMode = "none"
	// AuthModeHeaderProxy trusts user headers set by a reverse proxy on
	// every request.
	AuthModeHeaderProxy AuthMode = "header-proxy"
	// AuthModeAuthCallback asks a callback service to judge every
	// incoming request.
	AuthModeAuthCallback AuthMode = "auth-callback"
	// AuthModeLoginCallback asks a callback service to judge login
	// requests only; authenticated state lives in a session cookie.
	AuthModeLoginCallback AuthMode = "login-callback"
	// AuthModeLoginProxy trusts user headers on login requests only;
	// authenticated state lives in a session cookie.
	AuthModeLoginProxy AuthMode = "login-proxy"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "none", "header-proxy", "auth-callback", "login-callback", "login-proxy":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf(
			"invalid AuthMode: %q (valid options: none, header-proxy, auth-callback, login-callback, login-proxy)",
			v)
	}
}

// UsesCallback reports whether this mode consults the auth callback.
func (a AuthMode) UsesCallback() bool {
	return a == AuthModeAuthCallback || a == AuthModeLoginCallback
}

// UsesSessions reports whether this mode stores authenticated state in
// a session cookie.
func (a AuthMode) UsesSessions() bool {
	return a == AuthModeLoginCallback || a == AuthModeLoginProxy
}

// SessionStoreBackend selects where login sessions are persisted.
type SessionStoreBackend string

const (
	// SessionStorePostgres persists sessions in the user_sessions table.
	SessionStorePostgres SessionStoreBackend = "postgres"
	// SessionStoreRedis persists sessions in Redis with a TTL.
	SessionStoreRedis SessionStoreBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreBackend.
func (s *SessionStoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "postgres", "redis":
		*s = SessionStoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStoreBackend: %q (valid options: postgres, redis)", v)
	}
}

// HeaderConfig names the headers carrying user data in the proxy modes.
// All values arriving in these headers are base64url-encoded.
type HeaderConfig struct {
	Username    string `env:"USERNAME"     envDefault:"x-portal-username"`
	DisplayName string `env:"DISPLAY_NAME" envDefault:"x-portal-display-name"`
	Email       string `env:"EMAIL"        envDefault:"x-portal-email"`
	Roles       string `env:"ROLES"        envDefault:"x-portal-user-roles"`
}

// RoleConfig names the roles that unlock specific capabilities.
type RoleConfig struct {
	Moderator string `env:"MODERATOR"  envDefault:"ROLE_MODERATOR"`
	Upload    string `env:"UPLOAD"     envDefault:"ROLE_CAN_UPLOAD"`
	Studio    string `env:"STUDIO"     envDefault:"ROLE_STUDIO"`
	Editor    string `env:"EDITOR"     envDefault:"ROLE_EDITOR"`
	UserRealm string `env:"USER_REALM" envDefault:"ROLE_CAN_CREATE_USER_REALM"`
}

// CallbackConfig configures the external auth callback service.
type CallbackConfig struct {
	// URL is the callback endpoint. Required in the callback modes.
	URL string `env:"URL"`
	// Timeout bounds each callback exchange; exceeding it fails the
	// request as a gateway error.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines how requests are mapped to users.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"none"`

	// Headers carrying user data in the proxy modes.
	Headers HeaderConfig `envPrefix:"AUTH_HEADER_"`

	// Roles that unlock capabilities.
	Roles RoleConfig `envPrefix:"AUTH_ROLE_"`

	// UserRolePrefixes are the accepted prefixes for the user's
	// distinguished role. Exactly one of a user's roles should match.
	UserRolePrefixes []string `env:"AUTH_USER_ROLE_PREFIXES" envDefault:"ROLE_USER_" envSeparator:";"`

	// SessionDuration bounds how long a login session stays valid.
	SessionDuration time.Duration `env:"AUTH_SESSION_DURATION" envDefault:"720h"`

	// SessionBackend selects the session store.
	SessionBackend SessionStoreBackend `env:"AUTH_SESSION_BACKEND" envDefault:"postgres"`

	// TrustedExternalKey, when set, lets external applications
	// authenticate with full admin rights by presenting this key.
	TrustedExternalKey string `env:"AUTH_TRUSTED_EXTERNAL_KEY"`

	// Callback configuration (used in the callback modes).
	Callback CallbackConfig `envPrefix:"AUTH_CALLBACK_"`
}

// Sanitize applies guardrails to values loaded from env.
func (c *AuthConfig) Sanitize() {
	if c.SessionDuration < time.Minute {
		c.SessionDuration = time.Minute
	}
	if c.Callback.Timeout <= 0 {
		c.Callback.Timeout = 5 * time.Second
	}
	prefixes := make([]string, 0, len(c.UserRolePrefixes))
	for _, p := range c.UserRolePrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	c.UserRolePrefixes = prefixes
}

// Validate rejects configurations that cannot serve. The callback URL
// is required exactly in the callback modes and must not smuggle query
// parameters or fragments, since the callback request is built from it.
func (c *AuthConfig) Validate() error {
	if !c.Mode.UsesCallback() {
		if c.Callback.URL != "" {
			return fmt.Errorf("AUTH_CALLBACK_URL is set but auth mode %q never calls it", c.Mode)
		}
		return nil
	}

	if c.Callback.URL == "" {
		return fmt.Errorf("auth mode %q requires AUTH_CALLBACK_URL", c.Mode)
	}
	u, err := url.Parse(c.Callback.URL)
	if err != nil {
		return fmt.Errorf("invalid AUTH_CALLBACK_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("AUTH_CALLBACK_URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("AUTH_CALLBACK_URL has no host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("AUTH_CALLBACK_URL must not contain a query or fragment")
	}
	return nil
}
