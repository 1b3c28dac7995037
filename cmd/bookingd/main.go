package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/example/room-booking/cmd/bookingd/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Config  string           `help:"Path to a YAML config file. Defaults to ./config.yaml when present." env:"BOOKING_CONFIG"`
		Version kong.VersionFlag `help:"Print the version and exit."`

		Serve         commands.ServeCmd         `cmd:"" help:"Run the HTTP API."`
		Migrate       commands.MigrateCmd       `cmd:"" help:"Apply database migrations."`
		PurgeSessions commands.PurgeSessionsCmd `cmd:"" name:"purge-sessions" help:"Delete expired refresh sessions."`
		CreateAdmin   commands.CreateAdminCmd   `cmd:"" name:"create-admin" help:"Create an administrator or promote an existing account."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("bookingd"),
		kong.Description("Meeting room booking service."),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{ConfigFile: cli.Config, Version: version})
	cmd.FatalIfErrorf(err)
}
