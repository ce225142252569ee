package util

import (
	"context"

	"github.com/pgschema/pgreconcile/internal/config"
	"github.com/pgschema/pgreconcile/internal/database"
)

// OpenDatabase connects and selects the logical database named by
// settings, creating its schema first when create is set.
func OpenDatabase(ctx context.Context, conn *ConnectionFlags, settings *SettingsFlags, cfg config.Config, create bool) (*database.Database, error) {
	db, err := database.Open(ctx, conn.Config(), cfg)
	if err != nil {
		return nil, err
	}
	if settings.LogicalDB != "" {
		if err := db.SelectDatabase(ctx, settings.LogicalDB, create); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
