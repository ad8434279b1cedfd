package callback

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, endpoint string) *Resolver {
	t.Helper()
	r, err := New(Options{
		Endpoint:         endpoint,
		UserRolePrefixes: []string{"ROLE_USER_"},

		// Keep failure-path tests fast.
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return r
}

func TestNew_RejectsQueryAndFragment(t *testing.T) {
	_, err := New(Options{Endpoint: "http://auth.example.com/login?x=1"})
	assert.Error(t, err)

	_, err = New(Options{Endpoint: "http://auth.example.com/login#frag"})
	assert.Error(t, err)

	_, err = New(Options{Endpoint: "ftp://auth.example.com/login"})
	assert.Error(t, err)

	_, err = New(Options{Endpoint: "http://auth.example.com/login"})
	assert.NoError(t, err)
}

func TestResolve_User(t *testing.T) {
	var seenHeader string
	var seenMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader = r.Header.Get("X-Custom")
		seenMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"outcome": "user",
			"username": "alice",
			"displayName": "Alice",
			"email": null,
			"roles": ["ROLE_ANONYMOUS", "ROLE_USER_ALICE"]
		}`))
	}))
	defer srv.Close()

	resolver := newResolver(t, srv.URL)

	in := httptest.NewRequest("POST", "/graphql", nil)
	in.Header.Set("X-Custom", "forwarded")

	user, err := resolver.Resolve(in.Context(), in)
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.Nil(t, user.Email)
	assert.Equal(t, "ROLE_USER_ALICE", user.UserRole)

	// The outbound request carries the inbound method and headers.
	assert.Equal(t, "forwarded", seenHeader)
	assert.Equal(t, "POST", seenMethod)
}

func TestResolve_NoUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"outcome": "no-user"}`))
	}))
	defer srv.Close()

	user, err := newResolver(t, srv.URL).Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestResolve_Non200IsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newResolver(t, srv.URL).Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestResolve_UnparseableBodyIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`this is not json`))
	}))
	defer srv.Close()

	_, err := newResolver(t, srv.URL).Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestResolve_UnknownOutcomeIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"outcome": "redirect"}`))
	}))
	defer srv.Close()

	_, err := newResolver(t, srv.URL).Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestResolve_UnreachableEndpointIsGatewayError(t *testing.T) {
	// Reserve a port and close it again so nothing is listening.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := newResolver(t, endpoint).Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestResolve_TimeoutIsGatewayError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	resolver, err := New(Options{
		Endpoint:         srv.URL,
		UserRolePrefixes: []string{"ROLE_USER_"},
		Timeout:          50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = resolver.Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestResolve_UserVerdictWithoutRolesFieldIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"outcome": "user",
			"username": "alice",
			"displayName": "Alice"
		}`))
	}))
	defer srv.Close()

	_, err := newResolver(t, srv.URL).Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrGateway)
}

func TestResolve_UserWithoutUserRoleDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"outcome": "user",
			"username": "alice",
			"displayName": "Alice",
			"roles": ["ROLE_ANONYMOUS"]
		}`))
	}))
	defer srv.Close()

	user, err := newResolver(t, srv.URL).Resolve(t.Context(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Nil(t, user)
}
