package store

import (
	"context"
	"fmt"
	"log/slog"

	"fleettemp/config"
)

// Open returns the Writer selected by cfg.Store.Driver, migrated and ready.
func Open(ctx context.Context, log *slog.Logger, cfg *config.Config) (Writer, error) {
	var (
		w   Writer
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		w, err = OpenSQLite(SQLiteConfig{Logger: log, Path: cfg.Store.SQLitePath})
	case config.DriverPostgres:
		w, err = OpenPostgres(ctx, log, cfg.Database.GetDSN())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := w.Migrate(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	log.Info("store ready", "driver", cfg.Store.Driver)
	return w, nil
}
