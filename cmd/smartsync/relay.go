package main

import (
	"context"
	"io"

	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/room/relay"
	"github.com/spf13/pflag"
)

var relayCommand = command{
	name:    "relay",
	summary: "serve rooms to websocket participants",
	flags: func(fs *pflag.FlagSet) {
		fs.String("address", "", "listen address (overrides relay.address)")
		fs.String("path", "", "websocket path (overrides relay.path)")
	},
	bind: map[string]string{"address": "relay.address", "path": "relay.path"},
	run:  runRelay,
}

func runRelay(ctx context.Context, app *App, _ *pflag.FlagSet, _ io.Writer) error {
	cfg := config.GetRelayConfig()
	srv := relay.New(relay.Config{
		MaxMessageSize: cfg.MaxMessageSize,
		SendBuffer:     config.GetRoomConfig().BufferSize,
	}, app.Logger.With("component", "relay"))
	return srv.Serve(ctx, cfg.Address, cfg.Path)
}
