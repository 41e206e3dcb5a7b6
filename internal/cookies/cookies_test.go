package cookies

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspector_FromRequest(t *testing.T) {
	tests := []struct {
		name      string
		cookies   []*http.Cookie
		wantName  string
		wantFound bool
	}{
		{
			name:      "no cookies",
			wantFound: false,
		},
		{
			name:      "legacy cookie only",
			cookies:   []*http.Cookie{{Name: LegacySessionCookie, Value: "abc"}},
			wantName:  LegacySessionCookie,
			wantFound: true,
		},
		{
			name:      "secure cookie only",
			cookies:   []*http.Cookie{{Name: SecureSessionCookie, Value: "abc"}},
			wantName:  SecureSessionCookie,
			wantFound: true,
		},
		{
			name: "secure wins over legacy",
			cookies: []*http.Cookie{
				{Name: LegacySessionCookie, Value: "old"},
				{Name: SecureSessionCookie, Value: "new"},
			},
			wantName:  SecureSessionCookie,
			wantFound: true,
		},
		{
			name:      "empty value is ignored",
			cookies:   []*http.Cookie{{Name: LegacySessionCookie, Value: ""}},
			wantFound: false,
		},
		{
			name:      "unrelated cookie",
			cookies:   []*http.Cookie{{Name: "theme", Value: "dark"}},
			wantFound: false,
		},
	}

	inspector := NewInspector()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for _, c := range tt.cookies {
				r.AddCookie(c)
			}

			token, found := inspector.FromRequest(r)
			require.Equal(t, tt.wantFound, found)
			require.Equal(t, tt.wantName, token.Name)
		})
	}
}

func TestInspector_FromHeader(t *testing.T) {
	inspector := NewInspector()

	token, found := inspector.FromHeader("theme=dark; better-auth.session_token=abc")
	require.True(t, found)
	require.Equal(t, LegacySessionCookie, token.Name)
	require.Equal(t, "abc", token.Value)

	_, found = inspector.FromHeader("")
	require.False(t, found)

	_, found = inspector.FromHeader("theme=dark")
	require.False(t, found)
}

func TestInspector_FromResponse(t *testing.T) {
	inspector := NewInspector()

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Add("Set-Cookie", LegacySessionCookie+"=; Max-Age=0")
	resp.Header.Add("Set-Cookie", SecureSessionCookie+"=fresh; Path=/; Secure; HttpOnly")

	token, found := inspector.FromResponse(resp)
	require.True(t, found)
	require.Equal(t, SecureSessionCookie, token.Name)
	require.Equal(t, "fresh", token.Value)

	cleared := &http.Response{Header: http.Header{}}
	cleared.Header.Add("Set-Cookie", LegacySessionCookie+"=gone; Max-Age=0")

	_, found = inspector.FromResponse(cleared)
	require.False(t, found)
}

func TestInspector_FromJar(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	u, err := url.Parse("http://app.example.com/")
	require.NoError(t, err)

	inspector := NewInspector()

	_, found := inspector.FromJar(jar, u)
	require.False(t, found)

	jar.SetCookies(u, []*http.Cookie{{Name: LegacySessionCookie, Value: "abc", Path: "/"}})

	token, found := inspector.FromJar(jar, u)
	require.True(t, found)
	require.Equal(t, LegacySessionCookie, token.Name)

	_, found = inspector.FromJar(nil, u)
	require.False(t, found)
}

func TestInspector_customNames(t *testing.T) {
	inspector := NewInspector("sid", "", "old_sid")
	require.Equal(t, []string{"sid", "old_sid"}, inspector.Names())

	token, found := inspector.FromHeader("old_sid=1; sid=2")
	require.True(t, found)
	require.Equal(t, "sid", token.Name)
}
