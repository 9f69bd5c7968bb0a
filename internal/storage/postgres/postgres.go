// Package postgres implements the storage.Backend interface on a shared
// PostgreSQL database, for hosts that inspect session state from outside the client.
package postgres

import (
	"fmt"

	"github.com/minigames/smartsync/internal/database"
	gormstorage "github.com/minigames/smartsync/internal/storage/gorm"
)

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
}

// New connects to Postgres and returns the backend. Init must still be called
// to migrate the schema.
func New(cfg database.PostgresConfig) (*Backend, error) {
	db, err := database.OpenPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Backend{Backend: gormstorage.New(db)}, nil
}
