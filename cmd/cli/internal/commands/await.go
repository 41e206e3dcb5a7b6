package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hireloop/gatekeeper/internal/verify"
	"github.com/rs/zerolog/log"
)

type AwaitVerificationCmd struct {
	BackendFlags `embed:""`

	Interval    time.Duration `help:"time between session checks" default:"2s" env:"GATEKEEPER_POLL_INTERVAL"`
	PollTimeout time.Duration `help:"give up after this long" default:"15m" env:"GATEKEEPER_POLL_TIMEOUT"`
	Redirect    string        `help:"local path to continue to once verified" default:"/profile" env:"GATEKEEPER_REDIRECT"`
	Interactive bool          `help:"check again immediately whenever Enter is pressed" default:"false"`

	in  io.Reader `kong:"-"`
	out io.Writer `kong:"-"`
}

func (c *AwaitVerificationCmd) Run(ctx context.Context, globals *Globals) error {
	backend, err := c.newClient()
	if err != nil {
		return err
	}

	poller := verify.New(backend, verify.Config{
		Interval: c.Interval,
		Timeout:  c.PollTimeout,
		Redirect: c.Redirect,
	})

	w := output(c.out)
	fmt.Fprintln(w, "Waiting for email verification (press Ctrl+C to stop)...")

	if c.Interactive {
		in := c.in
		if in == nil {
			in = os.Stdin
		}
		go c.checkOnEnter(ctx, poller, in)
	}

	result, err := poller.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Email verified for %s\n", result.Session.User.Email)
	fmt.Fprintf(w, "Continue to: %s\n", result.Redirect)
	return nil
}

// checkOnEnter runs an out-of-band check for every line read from in.
func (c *AwaitVerificationCmd) checkOnEnter(ctx context.Context, poller *verify.Poller, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		_, verified, err := poller.CheckNow(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Manual verification check failed")
		case verified:
			return
		default:
			log.Info().Msg("Not verified yet")
		}
	}
}
