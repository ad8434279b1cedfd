package auth

// Package auth contains simple hand-written test doubles for the auth
// ports. These are lightweight and suitable for unit tests without
// codegen; gomock doubles live one package up.

import (
	"context"
	"net/http"
	"sync"
	"time"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
	_ ports.UserDirectory    = (*RecordingDirectory)(nil)
	_ ports.IdentityResolver = (*StaticResolver)(nil)
)

// MemorySessionStore is an in-memory session store for unit tests. The
// clock can be overridden to test expiry without sleeping.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.StoredSession

	// Now is the clock used for creation and age checks. Defaults to
	// time.Now.
	Now func() time.Time

	// Err, if set, is returned by every operation. Simulates storage
	// failure.
	Err error
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.StoredSession),
		Now:      time.Now,
	}
}

func (m *MemorySessionStore) Create(_ context.Context, user domainauth.User) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := domainauth.NewSessionID()
	if _, exists := m.sessions[id]; exists {
		return "", ports.ErrSessionIDCollision
	}
	m.sessions[id] = domainauth.StoredSession{
		ID:          id,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Roles:       user.Roles.Sorted(),
		Email:       user.Email,
		CreatedAt:   m.Now(),
	}
	return id, nil
}

// Put inserts a session with a chosen id and creation time. Test setup
// helper; production stores never expose this.
func (m *MemorySessionStore) Put(sess domainauth.StoredSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
}

func (m *MemorySessionStore) Lookup(
	_ context.Context,
	id string,
	maxAge time.Duration,
) (*domainauth.StoredSession, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if m.Now().Sub(sess.CreatedAt) >= maxAge {
		return nil, nil
	}
	out := sess
	return &out, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) PurgeExpired(_ context.Context, maxAge time.Duration) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, sess := range m.sessions {
		if m.Now().Sub(sess.CreatedAt) >= maxAge {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

// Len reports how many sessions are currently stored.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RecordingDirectory records profile upserts for inspection.
type RecordingDirectory struct {
	mu      sync.Mutex
	upserts []domainauth.User

	// Err, if set, is returned by UpsertProfile.
	Err error
}

// NewRecordingDirectory creates an empty recording directory.
func NewRecordingDirectory() *RecordingDirectory {
	return &RecordingDirectory{}
}

func (d *RecordingDirectory) UpsertProfile(_ context.Context, user domainauth.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.upserts = append(d.upserts, user)
	return nil
}

// Upserts returns a copy of all recorded upserts.
func (d *RecordingDirectory) Upserts() []domainauth.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domainauth.User, len(d.upserts))
	copy(out, d.upserts)
	return out
}

// StaticResolver returns a fixed user or error for every request.
type StaticResolver struct {
	User *domainauth.User
	Err  error
}

func (r *StaticResolver) Resolve(context.Context, *http.Request) (*domainauth.User, error) {
	return r.User, r.Err
}
