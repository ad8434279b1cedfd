package ports

// Package ports defines interfaces (hexagonal ports) for identity and
// session behavior. Implementations live in internal/adapters and
// internal/data; orchestration in internal/service.

import (
	"context"
	"errors"
	"net/http"
	"time"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
)

// ErrSessionIDCollision reports that a freshly generated session id
// already existed in the store. With 144 bits of entropy this is
// practically impossible, so stores surface it as a hard error instead
// of retrying; the request fails with an internal error.
var ErrSessionIDCollision = errors.New("session id collision")

// IdentityResolver resolves one trust strategy against an inbound
// request. A (nil, nil) return means "no identity" and degrades to
// anonymous; a non-nil error aborts the request.
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*domainauth.User, error)
}

// SessionStore persists server-side login sessions. It exclusively owns
// the stored rows; callers only ever see StoredSession snapshots.
type SessionStore interface {
	// Create generates an unguessable session id, persists a new
	// session for the user, and returns the id.
	Create(ctx context.Context, user domainauth.User) (string, error)

	// Lookup returns the session with the given id if its age is
	// strictly less than maxAge, or nil if there is no such session.
	Lookup(ctx context.Context, id string, maxAge time.Duration) (*domainauth.StoredSession, error)

	// Delete removes a session (logout). Deleting an unknown id is not
	// an error.
	Delete(ctx context.Context, id string) error

	// PurgeExpired deletes sessions whose age is maxAge or older and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}

// UserDirectory records the profile attributes a user was last seen
// with. Writes are best-effort; they are not on the authorization path.
type UserDirectory interface {
	UpsertProfile(ctx context.Context, user domainauth.User) error
}
