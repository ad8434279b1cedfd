package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/ports"
)

// DefaultProfileFreshness is how long a written profile counts as
// fresh. Within this window, identical profiles are not re-written.
const DefaultProfileFreshness = 30 * time.Minute

// ProfileCacheOptions groups dependencies for ProfileCache.
type ProfileCacheOptions struct {
	Directory ports.UserDirectory // Required: profile sink
	Freshness time.Duration       // Optional: re-write interval, defaults to DefaultProfileFreshness
	Logger    *slog.Logger        // Optional: structured logger
	Now       func() time.Time    // Optional: clock override for tests
}

// ProfileCache is a write-behind cache in front of the user directory.
// Every authenticated request carries the user's current profile; the
// cache makes sure the directory sees it without paying a database
// write per request.
type ProfileCache struct {
	directory ports.UserDirectory
	freshness time.Duration
	logger    *slog.Logger
	now       func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	fingerprint [sha256.Size]byte
	writtenAt   time.Time
}

// NewProfileCache constructs a new ProfileCache.
func NewProfileCache(opts ProfileCacheOptions) (*ProfileCache, error) {
	if opts.Directory == nil {
		return nil, errors.New("UserDirectory is required")
	}
	if opts.Freshness <= 0 {
		opts.Freshness = DefaultProfileFreshness
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "profile_cache")
	}

	return &ProfileCache{
		directory: opts.Directory,
		freshness: opts.Freshness,
		logger:    logger,
		now:       opts.Now,
		entries:   make(map[string]cacheEntry),
	}, nil
}

// Refresh writes the user's profile to the directory unless the same
// profile was already written within the freshness window. Concurrent
// refreshes for one username collapse into a single write.
func (c *ProfileCache) Refresh(ctx context.Context, user domainauth.User) error {
	fp := fingerprint(user)
	if c.isFresh(user.Username, fp) {
		return nil
	}

	_, err, _ := c.group.Do(user.Username, func() (interface{}, error) {
		// A racing caller may have written while we queued.
		if c.isFresh(user.Username, fp) {
			return nil, nil
		}
		if err := c.directory.UpsertProfile(ctx, user); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[user.Username] = cacheEntry{fingerprint: fp, writtenAt: c.now()}
		c.evictStaleLocked()
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// RefreshAsync runs Refresh on a detached goroutine so the request path
// never waits on, or fails with, the directory write. The write gets
// its own deadline decoupled from the request's cancellation.
func (c *ProfileCache) RefreshAsync(ctx context.Context, user domainauth.User) {
	detached := context.WithoutCancel(ctx)
	go func() {
		writeCtx, cancel := context.WithTimeout(detached, 10*time.Second)
		defer cancel()
		if err := c.Refresh(writeCtx, user); err != nil && c.logger != nil {
			c.logger.ErrorContext(writeCtx, "failed to refresh user profile",
				"username", user.Username,
				"error", err,
			)
		}
	}()
}

// evictStaleLocked drops entries past the freshness window so the map
// stays proportional to the set of recently active users instead of
// every username ever seen. Caller holds c.mu.
func (c *ProfileCache) evictStaleLocked() {
	cutoff := c.now().Add(-c.freshness)
	for username, entry := range c.entries {
		if entry.writtenAt.Before(cutoff) {
			delete(c.entries, username)
		}
	}
}

func (c *ProfileCache) isFresh(username string, fp [sha256.Size]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[username]
	if !ok || entry.fingerprint != fp {
		return false
	}
	return c.now().Sub(entry.writtenAt) < c.freshness
}

// fingerprint hashes the profile attributes that live in the users
// table, plus the role set, so any visible change forces a write.
func fingerprint(user domainauth.User) [sha256.Size]byte {
	h := sha256.New()
	writeField(h, user.Username)
	writeField(h, user.DisplayName)
	if user.Email != nil {
		writeField(h, *user.Email)
	} else {
		writeField(h, "")
	}
	writeField(h, user.UserRole)
	writeField(h, strings.Join(user.Roles.Sorted(), ","))

	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// writeField length-prefixes each field so ("ab","c") and ("a","bc")
// never hash alike.
func writeField(w io.Writer, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	_, _ = w.Write(lenBuf[:])
	_, _ = io.WriteString(w, s)
}
