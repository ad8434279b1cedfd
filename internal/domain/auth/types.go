package auth

// Package auth contains domain-level types for identity resolution and
// authorization. It is pure and free of framework/adapter concerns.

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// RoleAdmin grants unrestricted access. Users carrying it are global
	// administrators of the upstream system.
	RoleAdmin = "ROLE_ADMIN"

	// RoleAnonymous is implicitly held by everyone, including callers
	// without any identity.
	RoleAnonymous = "ROLE_ANONYMOUS"

	// SessionCookie is the name of the cookie carrying the session
	// identifier. Process-wide constant, not configurable.
	SessionCookie = "portal-session"

	// TrustedExternalHeader carries the pre-shared secret of trusted
	// external applications. Fixed name, unlike the proxy identity
	// headers which are configurable.
	TrustedExternalHeader = "x-portal-trusted-external-key"
)

// RoleSet is a set of authorization roles, keyed by role name.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from the given role names.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Contains reports whether the set holds the given role.
func (s RoleSet) Contains(role string) bool {
	_, ok := s[role]
	return ok
}

// Add inserts a role into the set.
func (s RoleSet) Add(role string) {
	s[role] = struct{}{}
}

// Sorted returns the roles in lexicographic order. Used wherever a
// stable ordering matters: SQL parameters, fingerprints, and the user
// role tie-break in DeriveUserRole.
func (s RoleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// User is a resolved end-user identity.
type User struct {
	Username    string
	DisplayName string
	Email       *string
	Roles       RoleSet

	// UserRole is the single role that uniquely names this user among
	// all their group roles, matched by a configured prefix. It is
	// always a member of Roles.
	UserRole string
}

// DeriveUserRole scans the role set for roles starting with any of the
// given prefixes. It returns the first match in sorted role order and
// the total number of matches. Sorted iteration makes the pick
// deterministic when a user mistakenly carries several user roles;
// callers are expected to log when matches != 1.
func DeriveUserRole(roles RoleSet, prefixes []string) (string, int) {
	var (
		first   string
		matches int
	)
	for _, role := range roles.Sorted() {
		for _, prefix := range prefixes {
			if strings.HasPrefix(role, prefix) {
				if matches == 0 {
					first = role
				}
				matches++
				break
			}
		}
	}
	return first, matches
}

// StoredSession is the persisted shape of a server-side session, as
// returned by session store lookups. Rows are owned by the store;
// callers derive User values from them and never write back.
type StoredSession struct {
	ID          string    `db:"id"`
	Username    string    `db:"username"`
	DisplayName string    `db:"display_name"`
	Roles       []string  `db:"roles"`
	Email       *string   `db:"email"`
	CreatedAt   time.Time `db:"created"`
}

// sessionIDBytes is the entropy of a session identifier. 144 bits is
// far beyond collision or guessing range; the identifier doubles as a
// bearer credential.
const sessionIDBytes = 18

// NewSessionID returns a cryptographically random, URL-safe session
// identifier (24 characters of base64url).
func NewSessionID() string {
	var b [sessionIDBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms; if it
		// ever does, minting credentials must not continue.
		panic(fmt.Sprintf("auth: read session id entropy: %v", err))
	}
	return base64.URLEncoding.EncodeToString(b[:])
}

// contextKind discriminates the AuthContext variants.
type contextKind int

const (
	kindAnonymous contextKind = iota
	kindTrustedExternal
	kindUser
)

// AuthContext is the resolved trust outcome for a single request:
// anonymous, a trusted external application, or an identified user.
// Exactly one variant is active; it is recomputed per request and never
// cached across requests.
type AuthContext struct {
	kind contextKind
	user *User
}

// Anonymous returns the context of a caller without any identity.
func Anonymous() AuthContext {
	return AuthContext{kind: kindAnonymous}
}

// TrustedExternal returns the context of a caller that presented the
// pre-shared trusted-external secret.
func TrustedExternal() AuthContext {
	return AuthContext{kind: kindTrustedExternal}
}

// Identified returns the context of a resolved end user.
func Identified(u User) AuthContext {
	return AuthContext{kind: kindUser, user: &u}
}

// IsUser reports whether this is a normally authenticated user. Usually
// roles should be checked instead.
func (c AuthContext) IsUser() bool {
	return c.kind == kindUser
}

// IsTrustedExternal reports whether the caller authenticated with the
// trusted-external secret.
func (c AuthContext) IsTrustedExternal() bool {
	return c.kind == kindTrustedExternal
}

// User returns the identified user, if any.
func (c AuthContext) User() (User, bool) {
	if c.kind != kindUser {
		return User{}, false
	}
	return *c.user, true
}

// Fixed role sets for the non-user variants. Computed once at process
// start and treated as immutable afterwards.
var (
	anonymousRoles = NewRoleSet(RoleAnonymous)

	// Trusted external callers need broad rights for the APIs they
	// drive, so they are granted the administrator role outright.
	trustedExternalRoles = NewRoleSet(RoleAdmin)
)

// Roles returns the caller's role set. The sets returned for the
// Anonymous and TrustedExternal variants are shared constants and must
// not be mutated.
func (c AuthContext) Roles() RoleSet {
	switch c.kind {
	case kindTrustedExternal:
		return trustedExternalRoles
	case kindUser:
		return c.user.Roles
	default:
		return anonymousRoles
	}
}

// LogName returns a representation of the caller suitable for logging.
func (c AuthContext) LogName() string {
	switch c.kind {
	case kindTrustedExternal:
		return "trusted external"
	case kindUser:
		return fmt.Sprintf("%q", c.user.Username)
	default:
		return "anonymous"
	}
}
