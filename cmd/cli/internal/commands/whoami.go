package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hireloop/gatekeeper/internal/authstate"
	"github.com/hireloop/gatekeeper/internal/profile"
)

// ErrNotSignedIn is returned when the backend reports no session.
var ErrNotSignedIn = errors.New("not signed in")

type WhoamiCmd struct {
	BackendFlags `embed:""`

	out io.Writer `kong:"-"`
}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	backend, err := c.newClient()
	if err != nil {
		return err
	}

	auth := authstate.New(backend)
	defer auth.Close()

	state := auth.Start(ctx)
	if state.Err != nil {
		return fmt.Errorf("failed to check session: %w", state.Err)
	}
	if !state.IsAuthenticated() {
		fmt.Fprintln(output(c.out), "Not signed in")
		return ErrNotSignedIn
	}

	users := profile.New(auth, backend)
	defer users.Close()

	current := users.Start(ctx)
	if current.Err != nil {
		return fmt.Errorf("failed to load user: %w", current.Err)
	}

	c.print(state, current)
	return nil
}

func (c *WhoamiCmd) print(state authstate.State, current profile.State) {
	w := output(c.out)
	user := current.User

	fmt.Fprintf(w, "User:     %s <%s>\n", user.DisplayName(), user.Email)
	fmt.Fprintf(w, "ID:       %s\n", user.ID)
	fmt.Fprintf(w, "Student:  %s\n", yesNo(current.IsStudent()))
	fmt.Fprintf(w, "Verified: %s\n", yesNo(state.Session.IsVerified()))
	if user.Role != "" {
		fmt.Fprintf(w, "Role:     %s\n", user.Role)
	}
	if !state.Session.Session.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:  %s\n", state.Session.Session.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
