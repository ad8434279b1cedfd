// Package redisstore provides a Redis-backed session store. It is an
// alternative to the Postgres store for deployments that already run
// Redis; expiry is delegated to key TTLs so the maintenance sweep has
// nothing to do.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

const defaultPrefix = "session:"

// SessionStore stores sessions as JSON values under a key prefix.
type SessionStore struct {
	client          redis.UniversalClient
	prefix          string
	sessionDuration time.Duration
}

var _ ports.SessionStore = (*SessionStore)(nil)

// New creates a Redis session store. sessionDuration becomes the TTL of
// every key written by Create.
func New(client redis.UniversalClient, sessionDuration time.Duration) *SessionStore {
	return &SessionStore{
		client:          client,
		prefix:          defaultPrefix,
		sessionDuration: sessionDuration,
	}
}

// NewWithPrefix creates a Redis session store with a custom key prefix.
func NewWithPrefix(client redis.UniversalClient, sessionDuration time.Duration, prefix string) *SessionStore {
	s := New(client, sessionDuration)
	s.prefix = prefix
	return s
}

func (s *SessionStore) Create(ctx context.Context, user domainauth.User) (string, error) {
	id := domainauth.NewSessionID()
	sess := domainauth.StoredSession{
		ID:          id,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Roles:       user.Roles.Sorted(),
		Email:       user.Email,
		CreatedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	// SETNX enforces id uniqueness; a collision surfaces as a hard
	// error rather than a retry.
	ok, err := s.client.SetNX(ctx, s.prefix+id, data, s.sessionDuration).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return "", ports.ErrSessionIDCollision
	}
	return id, nil
}

func (s *SessionStore) Lookup(
	ctx context.Context,
	id string,
	maxAge time.Duration,
) (*domainauth.StoredSession, error) {
	if id == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.StoredSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	// The TTL normally handles expiry; check the age anyway in case
	// maxAge was lowered after the key was written.
	if time.Since(sess.CreatedAt) >= maxAge {
		if err := s.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("cleanup expired session: %w", err)
		}
		return nil, nil
	}

	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}

// PurgeExpired is a no-op: Redis evicts expired keys on its own.
func (s *SessionStore) PurgeExpired(context.Context, time.Duration) (int64, error) {
	return 0, nil
}
