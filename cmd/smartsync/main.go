package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/minigames/smartsync/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "smartsync"
)

var errUsage = errors.New("usage")

// command is one smartsync subcommand. Flags named in bind override the
// config key they map to. A participant command names its log file after
// room.participant.
type command struct {
	name        string
	summary     string
	flags       func(fs *pflag.FlagSet)
	bind        map[string]string
	participant bool
	run         func(ctx context.Context, app *App, fs *pflag.FlagSet, stdout io.Writer) error
}

var commands = []command{simulateCommand, relayCommand, joinCommand}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return errUsage
	}

	name := strings.ToLower(args[0])
	if name == "version" {
		fmt.Fprintf(stdout, "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return nil
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stdout, "unknown command %q\n\n", args[0])
		printUsage(stdout)
		return errUsage
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stdout)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("storage", "", "entity store: memory, sqlite or postgres")
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%s: %w", cmd.name, err)
	}

	viper.Reset()
	if err := config.Load(*configDir); err != nil {
		config.LoadDefaults()
		fmt.Fprintf(stdout, "no config loaded from %s, using defaults\n", *configDir)
	}
	bind := map[string]string{"log-level": "logLevel", "storage": "storage.type"}
	for flag, key := range cmd.bind {
		bind[flag] = key
	}
	for flag, key := range bind {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	var participant string
	if cmd.participant {
		participant = config.GetRoomConfig().Participant
	}
	app, err := NewApp(ctx, cmd.name, participant)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logger.Info("Starting", "command", cmd.name, "version", CurrentVersion, "build", BuildDate)
	if err := cmd.run(ctx, app, fs, stdout); err != nil {
		app.Logger.Error("Command failed", "command", cmd.name, "error", err)
		return err
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\nCommands:\n", AppName)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "  %-10s %s\n", "version", "print the version")
}
