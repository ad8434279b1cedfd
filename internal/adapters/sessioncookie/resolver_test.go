package sessioncookie

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/openlecture/portal/internal/domain/auth"
	"github.com/openlecture/portal/internal/mocks"
	mockauth "github.com/openlecture/portal/internal/mocks/auth"
)

const sessionDuration = 30 * 24 * time.Hour

func newResolver(t *testing.T, store *mockauth.MemorySessionStore) *Resolver {
	t.Helper()
	r, err := New(Options{
		Store:            store,
		SessionDuration:  sessionDuration,
		UserRolePrefixes: []string{"ROLE_USER_"},
	})
	require.NoError(t, err)
	return r
}

func requestWithCookie(id string) *http.Request {
	r := httptest.NewRequest("GET", "/graphql", nil)
	if id != "" {
		r.AddCookie(&http.Cookie{Name: domainauth.SessionCookie, Value: id})
	}
	return r
}

func TestResolve_FreshSession(t *testing.T) {
	store := mockauth.NewMemorySessionStore()
	store.Put(domainauth.StoredSession{
		ID:          "sess-1",
		Username:    "alice",
		DisplayName: "Alice",
		Roles:       []string{"ROLE_ANONYMOUS", "ROLE_USER_ALICE"},
		CreatedAt:   time.Now().Add(-10 * time.Second),
	})

	user, err := newResolver(t, store).Resolve(t.Context(), requestWithCookie("sess-1"))
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.Equal(t, "ROLE_USER_ALICE", user.UserRole)
	assert.True(t, user.Roles.Contains("ROLE_ANONYMOUS"))
}

func TestResolve_ExpiredSession(t *testing.T) {
	store := mockauth.NewMemorySessionStore()
	store.Put(domainauth.StoredSession{
		ID:        "sess-1",
		Username:  "alice",
		Roles:     []string{"ROLE_USER_ALICE"},
		CreatedAt: time.Now().Add(-31 * 24 * time.Hour),
	})

	user, err := newResolver(t, store).Resolve(t.Context(), requestWithCookie("sess-1"))
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestResolve_NoCookie(t *testing.T) {
	user, err := newResolver(t, mockauth.NewMemorySessionStore()).
		Resolve(t.Context(), requestWithCookie(""))
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestResolve_UnknownSession(t *testing.T) {
	user, err := newResolver(t, mockauth.NewMemorySessionStore()).
		Resolve(t.Context(), requestWithCookie("nope"))
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestResolve_StorageErrorPropagates(t *testing.T) {
	store := mockauth.NewMemorySessionStore()
	store.Err = errors.New("connection refused")

	_, err := newResolver(t, store).Resolve(t.Context(), requestWithCookie("sess-1"))
	assert.ErrorContains(t, err, "connection refused")
}

func TestResolve_SessionWithoutUserRoleDegrades(t *testing.T) {
	store := mockauth.NewMemorySessionStore()
	store.Put(domainauth.StoredSession{
		ID:        "sess-1",
		Username:  "alice",
		Roles:     []string{"ROLE_ANONYMOUS"},
		CreatedAt: time.Now(),
	})

	user, err := newResolver(t, store).Resolve(t.Context(), requestWithCookie("sess-1"))
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestResolve_PassesConfiguredDuration(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().
		Lookup(gomock.Any(), "sess-1", sessionDuration).
		Return(nil, nil)

	r, err := New(Options{
		Store:            store,
		SessionDuration:  sessionDuration,
		UserRolePrefixes: []string{"ROLE_USER_"},
	})
	require.NoError(t, err)

	user, err := r.Resolve(t.Context(), requestWithCookie("sess-1"))
	require.NoError(t, err)
	assert.Nil(t, user)
}
