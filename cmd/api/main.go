// Command api serves the canonical dataset to the visualization layer.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fleettemp/config"
	"fleettemp/handlers"
	"fleettemp/logging"
	"fleettemp/models"
	"fleettemp/services"
	"fleettemp/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Verbose)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reader, db, closer, err := openReader(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	cache, err := services.NewCacheService(ctx, log, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, caching and live updates disabled", "error", err)
	}
	defer cache.Close()

	router := handlers.NewRouter(handlers.Deps{
		Log:    log,
		Reader: reader,
		DB:     db,
		Cache:  cache,
		Auth:   authFor(db, cfg.JWT, log),
		CORS:   cfg.CORS,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("starting server", "addr", addr, "store", cfg.Store.Driver)
	return router.Run(addr)
}

// authFor returns the token service guarding the API. Without a users table
// no token can be issued, so the API is served open.
func authFor(db *gorm.DB, cfg config.JWTConfig, log *slog.Logger) *services.AuthService {
	if db == nil {
		log.Warn("no users table, API routes are served without authentication")
		return nil
	}
	return services.NewAuthService(cfg)
}

// openReader returns the dataset reader for the configured driver. On
// Postgres it also returns the gorm handle backing the users table; the
// SQLite store runs without one.
func openReader(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Reader, *gorm.DB, io.Closer, error) {
	if cfg.Store.Driver == config.DriverSQLite {
		w, err := store.Open(ctx, log, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open store: %w", err)
		}
		return w, nil, w, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get sql db handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&models.User{}); err != nil {
		_ = sqlDB.Close()
		return nil, nil, nil, fmt.Errorf("migrate users: %w", err)
	}
	return store.NewGormReader(db), db, sqlDB, nil
}
