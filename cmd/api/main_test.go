package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"fleettemp/config"
	"fleettemp/handlers"
	"fleettemp/logging"
	"fleettemp/services"
)

func TestOpenReaderSQLite(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "api.db"),
	}}

	reader, db, closer, err := openReader(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openReader failed: %v", err)
	}
	defer closer.Close()
	if db != nil {
		t.Error("sqlite store should not expose a gorm handle")
	}

	vehicles, err := reader.Vehicles(context.Background())
	if err != nil {
		t.Fatalf("Vehicles failed: %v", err)
	}
	if len(vehicles) != 0 {
		t.Errorf("len(vehicles) = %d, want 0", len(vehicles))
	}

	auth := authFor(db, config.JWTConfig{Secret: "test", ExpiryHours: 1}, logging.Discard())
	if auth != nil {
		t.Fatal("authFor() without a users table should return nil")
	}
	router := handlers.NewRouter(handlers.Deps{
		Log:    logging.Discard(),
		Reader: reader,
		Cache:  &services.CacheService{},
		Auth:   auth,
	})

	t.Run("login is not mounted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("login status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("data routes are reachable without a token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vehicles", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("vehicles status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

func TestOpenReaderPostgresUnreachable(t *testing.T) {
	cfg := &config.Config{
		Store: config.StoreConfig{Driver: config.DriverPostgres},
		Database: config.DatabaseConfig{
			Host: "127.0.0.1", Port: 1, User: "x", Password: "x", Name: "x", SSLMode: "disable",
		},
	}
	if _, _, _, err := openReader(context.Background(), cfg, logging.Discard()); err == nil {
		t.Error("expected error for unreachable database")
	}
}
