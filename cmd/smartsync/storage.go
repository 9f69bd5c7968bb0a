package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/minigames/smartsync/internal/config"
	"github.com/minigames/smartsync/internal/database"
	"github.com/minigames/smartsync/internal/storage"
	"github.com/minigames/smartsync/internal/storage/memory"
	pgstorage "github.com/minigames/smartsync/internal/storage/postgres"
	sqlitestorage "github.com/minigames/smartsync/internal/storage/sqlite"
)

// createStorageBackend builds the entity store of one participant. SQLite
// dumps go to a per-participant file next to the logs unless a path is set.
func createStorageBackend(cfg config.StorageConfig, logsDir, participant string, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		backend, err := pgstorage.New(database.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Username: cfg.Postgres.Username,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Postgres storage backend initialized", "host", cfg.Postgres.Host)
		return backend, nil

	case "sqlite":
		dumpPath := cfg.SQLite.DumpPath
		if dumpPath == "" {
			dumpPath = filepath.Join(logsDir, fmt.Sprintf("%s_%s.db", AppName, participant))
		} else {
			ext := filepath.Ext(dumpPath)
			dumpPath = fmt.Sprintf("%s_%s%s", dumpPath[:len(dumpPath)-len(ext)], participant, ext)
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "memory", "":
		logger.Info("Memory storage backend initialized")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}
