package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	mockauth "github.com/openlecture/portal/internal/mocks/auth"
)

func testUser(username string) domainauth.User {
	email := username + "@example.org"
	return domainauth.User{
		Username:    username,
		DisplayName: "Test User",
		Email:       &email,
		Roles:       domainauth.NewRoleSet(domainauth.RoleAnonymous, "ROLE_USER_"+username),
		UserRole:    "ROLE_USER_" + username,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, dir *mockauth.RecordingDirectory, clock *fakeClock) *ProfileCache {
	t.Helper()
	cache, err := NewProfileCache(ProfileCacheOptions{
		Directory: dir,
		Freshness: 30 * time.Minute,
		Now:       clock.Now,
	})
	require.NoError(t, err)
	return cache
}

func TestProfileCache_RequiresDirectory(t *testing.T) {
	_, err := NewProfileCache(ProfileCacheOptions{})
	require.Error(t, err)
}

func TestProfileCache_WritesOncePerFreshnessWindow(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)
	user := testUser("alice")

	require.NoError(t, cache.Refresh(context.Background(), user))
	require.NoError(t, cache.Refresh(context.Background(), user))
	clock.Advance(29 * time.Minute)
	require.NoError(t, cache.Refresh(context.Background(), user))

	assert.Len(t, dir.Upserts(), 1, "identical fresh profile must not be re-written")
}

func TestProfileCache_RewritesAfterFreshnessExpires(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)
	user := testUser("alice")

	require.NoError(t, cache.Refresh(context.Background(), user))
	clock.Advance(31 * time.Minute)
	require.NoError(t, cache.Refresh(context.Background(), user))

	assert.Len(t, dir.Upserts(), 2)
}

func TestProfileCache_RewritesOnProfileChange(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)
	user := testUser("alice")

	require.NoError(t, cache.Refresh(context.Background(), user))

	user.DisplayName = "Alice Renamed"
	require.NoError(t, cache.Refresh(context.Background(), user))

	// dropping the email is also a change
	user.Email = nil
	require.NoError(t, cache.Refresh(context.Background(), user))

	// so is gaining a role
	user.Roles.Add("ROLE_MODERATOR")
	require.NoError(t, cache.Refresh(context.Background(), user))

	upserts := dir.Upserts()
	require.Len(t, upserts, 4)
	assert.Equal(t, "Alice Renamed", upserts[1].DisplayName)
	assert.Nil(t, upserts[2].Email)
}

func TestProfileCache_DistinctUsersDoNotShareEntries(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)

	require.NoError(t, cache.Refresh(context.Background(), testUser("alice")))
	require.NoError(t, cache.Refresh(context.Background(), testUser("bob")))

	assert.Len(t, dir.Upserts(), 2)
}

func TestProfileCache_FailedWriteIsNotCached(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	dir.Err = errors.New("db down")
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)
	user := testUser("alice")

	require.Error(t, cache.Refresh(context.Background(), user))

	// once the directory recovers, the profile lands
	dir.Err = nil
	require.NoError(t, cache.Refresh(context.Background(), user))
	assert.Len(t, dir.Upserts(), 1)
}

func TestProfileCache_ConcurrentRefreshesCollapse(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)
	user := testUser("alice")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cache.Refresh(context.Background(), user)
		}()
	}
	wg.Wait()

	// singleflight plus the fingerprint check keep this to a handful of
	// writes at most; with no clock movement it should be exactly one
	// unless a write raced the first in-flight call.
	assert.LessOrEqual(t, len(dir.Upserts()), 2)
	assert.NotEmpty(t, dir.Upserts())
}

func TestProfileCache_EvictsStaleEntries(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)

	require.NoError(t, cache.Refresh(context.Background(), testUser("alice")))
	require.NoError(t, cache.Refresh(context.Background(), testUser("bob")))

	cache.mu.Lock()
	size := len(cache.entries)
	cache.mu.Unlock()
	require.Equal(t, 2, size)

	// both entries are past the freshness window when carol's write
	// triggers the sweep
	clock.Advance(31 * time.Minute)
	require.NoError(t, cache.Refresh(context.Background(), testUser("carol")))

	cache.mu.Lock()
	_, alice := cache.entries["alice"]
	_, carol := cache.entries["carol"]
	size = len(cache.entries)
	cache.mu.Unlock()

	assert.False(t, alice, "stale entry must be evicted")
	assert.True(t, carol)
	assert.Equal(t, 1, size)
}

func TestProfileCache_RefreshAsyncEventuallyWrites(t *testing.T) {
	dir := mockauth.NewRecordingDirectory()
	clock := newFakeClock()
	cache := newTestCache(t, dir, clock)

	// a cancelled request context must not cancel the write
	ctx, cancel := context.WithCancel(context.Background())
	cache.RefreshAsync(ctx, testUser("alice"))
	cancel()

	require.Eventually(t, func() bool {
		return len(dir.Upserts()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
