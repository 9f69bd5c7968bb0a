package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/influx"
	"github.com/minigames/smartsync/internal/logging"
	"github.com/minigames/smartsync/internal/monitor"
	intOtel "github.com/minigames/smartsync/internal/otel"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const shutdownTimeout = 5 * time.Second

// App holds the process-wide sinks shared by every participant a command runs.
type App struct {
	Command      string
	StartTime    time.Time
	LogsDir      string
	LogFilePath  string
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	Zerolog      zerolog.Logger
	OTelProvider *intOtel.Provider
	Influx       *influx.Manager

	logFile *os.File
	graylog *gelf.Writer
}

// NewApp opens the log file and wires logging, OTel, Graylog and InfluxDB
// from the loaded config. Sinks that fail to start are logged and skipped.
// participant may be empty when the command runs several of them.
func NewApp(ctx context.Context, command, participant string) (*App, error) {
	app := &App{
		Command:     command,
		StartTime:   time.Now(),
		LogsDir:     config.GetString("logsDir"),
		SlogManager: logging.NewSlogManager(),
	}

	if err := os.MkdirAll(app.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	app.LogFilePath = logging.LogFilePath(app.LogsDir, AppName, command, participant, app.StartTime)
	if _, err := os.Stat(app.LogFilePath); err == nil {
		_ = os.Rename(app.LogFilePath, app.LogFilePath+".old")
	}
	file, err := os.OpenFile(app.LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	app.logFile = file

	level := config.GetString("logLevel")
	var startupErrs []error

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		instance := participant
		if instance == "" {
			instance = command
		}
		app.OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			Instance:       instance,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      file,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			startupErrs = append(startupErrs, fmt.Errorf("otel: %w", err))
			app.OTelProvider = nil
		}
	}

	var graylog io.Writer
	if glCfg := config.GetGraylogConfig(); glCfg.Enabled {
		app.graylog, err = logging.NewGraylogWriter(glCfg.Address, AppName)
		if err != nil {
			startupErrs = append(startupErrs, fmt.Errorf("graylog: %w", err))
		} else {
			graylog = app.graylog
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if app.OTelProvider != nil {
		otelLogProvider = app.OTelProvider.LoggerProvider()
	}
	app.SlogManager.Setup(logging.Options{
		File:     file,
		Level:    level,
		Provider: otelLogProvider,
		Graylog:  graylog,
		Context: logging.JoinProviders(
			logging.Static(slog.String("command", command)),
			logging.Uptime(app.StartTime),
		),
	})
	app.Logger = app.SlogManager.Logger()
	app.Zerolog = logging.NewZerolog(nil, file, level)

	for _, err := range startupErrs {
		app.Logger.Error("Failed to start log sink", "error", err)
	}
	app.Logger.Info("Logging to file", "path", app.LogFilePath)

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backup := filepath.Join(app.LogsDir, fmt.Sprintf("%s_influx_backup_%s.log.gzip", AppName, app.StartTime.Format("20060102_150405")))
		app.Influx = influx.NewManager(influxCfg, app.Zerolog.With().Str("component", "influx").Logger(), backup)
		if err := app.Influx.Connect(ctx); err != nil {
			app.Logger.Error("Failed to connect to InfluxDB", "error", err)
			_ = app.Influx.Close()
			app.Influx = nil
		}
	}

	return app, nil
}

// Points returns the status point sink, or nil when InfluxDB is off.
func (a *App) Points() monitor.PointWriter {
	if a.Influx == nil {
		return nil
	}
	return a.Influx
}

// Close flushes and releases every sink.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.Influx != nil {
		errs = append(errs, a.Influx.Close())
	}
	errs = append(errs, a.SlogManager.Flush(ctx))
	if a.OTelProvider != nil {
		errs = append(errs, a.OTelProvider.Shutdown(ctx))
	}
	if a.graylog != nil {
		errs = append(errs, a.graylog.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("Errors during shutdown", "error", err)
	}
	if n := a.SlogManager.SinkFailures(); n > 0 {
		a.Logger.Warn("Log records lost by a sink", "count", n)
	}
	a.Logger.Info("Shut down", "command", a.Command, "uptime", time.Since(a.StartTime).Round(time.Millisecond))
	_ = a.logFile.Close()
}
