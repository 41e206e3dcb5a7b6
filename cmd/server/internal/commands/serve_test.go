package commands

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServe(t *testing.T) (http.Handler, *atomic.Int32) {
	t.Helper()

	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=600")
		w.Header().Set("X-Upstream-Host", r.Host)
		_, _ = io.WriteString(w, "page "+r.URL.Path)
	}))
	t.Cleanup(app.Close)

	probes := &atomic.Int32{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"user":null}`)
	}))
	t.Cleanup(api.Close)

	cmd := &ServeCmd{
		Upstream:       app.URL,
		APIURL:         api.URL,
		ProbeTimeout:   time.Second,
		SessionCookies: []string{"__Secure-better-auth.session_token", "better-auth.session_token"},
		CORSOrigins:    []string{"https://www.example.com"},
	}

	handler, err := cmd.newHandler(zerolog.Nop())
	require.NoError(t, err)
	return handler, probes
}

func TestServe_healthz(t *testing.T) {
	handler, probes := newTestServe(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
	require.Zero(t, probes.Load())
}

func TestServe_protectedRedirects(t *testing.T) {
	handler, probes := newTestServe(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://www.example.com/profile", nil))

	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	require.Equal(t, "/?redirect=%2Fprofile", w.Header().Get("Location"))
	require.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
	require.Equal(t, int32(1), probes.Load())
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestServe_protectedWithCookieIsProxied(t *testing.T) {
	handler, probes := newTestServe(t)

	r := httptest.NewRequest(http.MethodGet, "http://www.example.com/matches", nil)
	r.AddCookie(&http.Cookie{Name: "better-auth.session_token", Value: "abc"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "page /matches", w.Body.String())
	require.Equal(t, "www.example.com", w.Header().Get("X-Upstream-Host"))
	require.Equal(t, []string{"private, no-cache"}, w.Header().Values("Cache-Control"))
	require.Contains(t, w.Header().Values("Vary"), "Cookie")
	require.Zero(t, probes.Load())
}

func TestServe_anonymousLandingIsNoStore(t *testing.T) {
	handler, _ := newTestServe(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://www.example.com/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"no-store, no-cache, must-revalidate, max-age=0"}, w.Header().Values("Cache-Control"))
	require.Equal(t, "0", w.Header().Get("Expires"))
	require.Equal(t, "page /", w.Body.String())
}

func TestServe_apiPassthrough(t *testing.T) {
	handler, probes := newTestServe(t)

	r := httptest.NewRequest(http.MethodGet, "http://www.example.com/api/jobs", nil)
	r.Header.Set("Origin", "https://www.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "page /api/jobs", w.Body.String())
	require.Equal(t, "https://www.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.Zero(t, probes.Load())
}

func TestServe_invalidConfig(t *testing.T) {
	_, err := (&ServeCmd{Upstream: "not a url", APIURL: "http://api"}).newHandler(zerolog.Nop())
	require.Error(t, err)

	_, err = (&ServeCmd{Upstream: "http://app", APIURL: "http://api", Production: true}).newHandler(zerolog.Nop())
	require.Error(t, err)
}

func TestIsAPIRoute(t *testing.T) {
	require.True(t, isAPIRoute("/api"))
	require.True(t, isAPIRoute("/api/users/me"))
	require.False(t, isAPIRoute("/apis"))
	require.False(t, isAPIRoute("/profile"))
}
