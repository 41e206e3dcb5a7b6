package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hireloop/gatekeeper/internal/backend"
	"github.com/hireloop/gatekeeper/internal/cookies"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the default endpoint set and requires the legacy session cookie.
type fakeBackend struct {
	userHits  atomic.Int32
	clearHits atomic.Int32
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	authed := func(r *http.Request) bool {
		c, err := r.Cookie(cookies.LegacySessionCookie)
		return err == nil && c.Value == "abc"
	}

	mux.HandleFunc("GET /api/auth/get-session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !authed(r) {
			_, _ = w.Write([]byte(`null`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","emailVerified":true},"session":{"id":"s1","userId":"u1"}}`))
	})

	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.userHits.Add(1)
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "private, max-age=60")
		_, _ = w.Write([]byte(`{"data":{"id":"u1","first_name":"Ada","is_student":true}}`))
	})

	mux.HandleFunc("POST /api/auth/clear-legacy-cookies", func(w http.ResponseWriter, r *http.Request) {
		f.clearHits.Add(1)
		http.SetCookie(w, &http.Cookie{Name: cookies.LegacySessionCookie, Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()

	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	c, err := New(Config{APIURL: srv.URL})
	require.NoError(t, err)

	return c, fb
}

func TestNew_requiresAPIURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestClient_Session(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	session, err := c.Session(ctx)
	require.NoError(t, err)
	require.Nil(t, session)

	require.NoError(t, c.SetSessionToken(cookies.LegacySessionCookie, "abc"))
	require.True(t, c.HasSessionCookie())

	session, err = c.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, "u1", session.User.ID)
	require.True(t, session.IsVerified())
}

func TestClient_Session_backendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Config{APIURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Session(context.Background())
	require.ErrorIs(t, err, backend.ErrAllCandidatesFailed)
}

func TestClient_CurrentUser(t *testing.T) {
	c, fb := newTestClient(t)
	ctx := context.Background()

	_, err := c.CurrentUser(ctx)
	require.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, c.SetSessionToken(cookies.LegacySessionCookie, "abc"))

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "Ada", user.FirstName)
	require.True(t, user.IsStudent)

	// Second lookup is served from the HTTP cache
	_, err = c.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), fb.userHits.Load())
}

func TestClient_CurrentUser_cacheScopedToSession(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		c, err := r.Cookie(cookies.LegacySessionCookie)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "private, max-age=60")
		_, _ = w.Write([]byte(`{"id":"user-of-` + c.Value + `"}`))
	}))
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	ctx := context.Background()

	newSignedIn := func(token string) *Client {
		c, err := New(Config{APIURL: srv.URL, CacheDir: cacheDir})
		require.NoError(t, err)
		require.NoError(t, c.SetSessionToken(cookies.LegacySessionCookie, token))
		return c
	}

	alice := newSignedIn("alice")
	user, err := alice.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-of-alice", user.ID)

	bob := newSignedIn("bob")
	user, err = bob.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-of-bob", user.ID)

	require.NoError(t, alice.SetSessionToken(cookies.LegacySessionCookie, "carol"))
	user, err = alice.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-of-carol", user.ID)
	require.Equal(t, int32(3), hits.Load())

	// Same session across clients still reuses the shared disk cache
	user, err = newSignedIn("bob").CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-of-bob", user.ID)
	require.Equal(t, int32(3), hits.Load())
}

func TestClient_ClearLegacyCookies(t *testing.T) {
	c, fb := newTestClient(t)

	require.NoError(t, c.SetSessionToken(cookies.LegacySessionCookie, "abc"))
	require.True(t, c.HasSessionCookie())

	require.NoError(t, c.ClearLegacyCookies(context.Background()))
	require.Equal(t, int32(1), fb.clearHits.Load())
	require.False(t, c.HasSessionCookie())
}
