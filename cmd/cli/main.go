package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/hireloop/gatekeeper/cmd/cli/internal/commands"
	"github.com/hireloop/gatekeeper/internal/logger"
	"github.com/rs/zerolog/log"
)

var (
	version = "dev"
	cli     struct {
		Whoami            commands.WhoamiCmd            `cmd:"" help:"Show the signed-in user"`
		AwaitVerification commands.AwaitVerificationCmd `cmd:"" help:"Wait until the user's email address is verified"`
		Classify          commands.ClassifyCmd          `cmd:"" help:"Print the access class of each path"`
		Debug             bool                          `help:"Enable debug mode."`
		Version           kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.Vars(commands.Vars()),
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
