package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hireloop/gatekeeper/internal/client"
	"github.com/hireloop/gatekeeper/internal/cookies"
)

type Globals struct {
	Debug   bool
	Version string
}

// Vars are the kong variables referenced by command defaults.
func Vars() map[string]string {
	return map[string]string{
		"session_cookie": cookies.SecureSessionCookie,
	}
}

// BackendFlags select the backend and the session the commands act as.
type BackendFlags struct {
	APIURL       string        `name:"api-url" help:"backend API base URL" default:"http://localhost:3001" env:"GATEKEEPER_API_URL"`
	AuthURL      string        `name:"auth-url" help:"auth service base URL, defaults to the API URL" default:"" env:"GATEKEEPER_AUTH_URL"`
	SessionToken string        `help:"session token to present" default:"" env:"GATEKEEPER_SESSION_TOKEN"`
	CookieName   string        `help:"cookie the session token is sent in" default:"${session_cookie}" env:"GATEKEEPER_COOKIE_NAME"`
	Timeout      time.Duration `help:"backend request timeout" default:"10s" env:"GATEKEEPER_TIMEOUT"`
	CacheDir     string        `help:"directory for cached user lookups, in memory when empty" default:"" env:"GATEKEEPER_CACHE_DIR"`
}

func (b *BackendFlags) newClient() (*client.Client, error) {
	c, err := client.New(client.Config{
		APIURL:   b.APIURL,
		AuthURL:  b.AuthURL,
		Timeout:  b.Timeout,
		CacheDir: b.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	if b.SessionToken != "" {
		if err := c.SetSessionToken(b.CookieName, b.SessionToken); err != nil {
			return nil, fmt.Errorf("failed to set session token: %w", err)
		}
	}

	return c, nil
}

func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
