package storage

import (
	"log/slog"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/internal/storage/sql"
)

// NewStorage creates the run history store from the database section of the
// configuration. It currently uses the SQL storage implementation.
func NewStorage(databaseConfig *map[string]any, logger *slog.Logger) (abstractions.RunStore, error) {
	if databaseConfig == nil {
		return nil, serviceerrors.NewStorageError("database configuration is required")
	}
	return sql.NewStorage(*databaseConfig, logger)
}
