package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "fleettemp",
		Password: "secret",
		Name:     "fleettemp",
		SSLMode:  "disable",
	}
	dsn := db.GetDSN()

	expected := "host=localhost port=5432 user=fleettemp password=secret dbname=fleettemp sslmode=disable"
	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestGetDSNCustomValues(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5433,
		User:     "admin",
		Password: "p@ss",
		Name:     "telemetry",
		SSLMode:  "require",
	}
	dsn := db.GetDSN()

	for _, want := range []string{"host=db.example.com", "port=5433", "sslmode=require"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN missing %s, got: %s", want, dsn)
		}
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	if got := r.Addr(); got != "cache:6380" {
		t.Errorf("Addr() = %q, want %q", got, "cache:6380")
	}
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("TEST_CONFIG_VAR")
	if got := getEnv("TEST_CONFIG_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want %q", got, "default")
	}

	t.Setenv("TEST_CONFIG_VAR", "custom")
	if got := getEnv("TEST_CONFIG_VAR", "default"); got != "custom" {
		t.Errorf("getEnv() = %q, want %q", got, "custom")
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Run("fallback when unset", func(t *testing.T) {
		os.Unsetenv("TEST_INT_VAR")
		got, err := getIntEnv("TEST_INT_VAR", 8080)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 8080 {
			t.Errorf("getIntEnv() = %d, want %d", got, 8080)
		}
	})

	t.Run("parses valid int", func(t *testing.T) {
		t.Setenv("TEST_INT_VAR", "9090")
		got, err := getIntEnv("TEST_INT_VAR", 8080)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 9090 {
			t.Errorf("getIntEnv() = %d, want %d", got, 9090)
		}
	})

	t.Run("error on invalid int", func(t *testing.T) {
		t.Setenv("TEST_INT_VAR", "not_int")
		if _, err := getIntEnv("TEST_INT_VAR", 8080); err == nil {
			t.Error("expected error for invalid int value")
		}
	})
}

func TestGetBoolAndDurationEnv(t *testing.T) {
	t.Setenv("TEST_BOOL_VAR", "true")
	if got, err := getBoolEnv("TEST_BOOL_VAR", false); err != nil || !got {
		t.Errorf("getBoolEnv() = %v, %v, want true", got, err)
	}
	t.Setenv("TEST_BOOL_VAR", "maybe")
	if _, err := getBoolEnv("TEST_BOOL_VAR", false); err == nil {
		t.Error("expected error for invalid bool value")
	}

	t.Setenv("TEST_DUR_VAR", "90s")
	if got, err := getDurationEnv("TEST_DUR_VAR", time.Second); err != nil || got != 90*time.Second {
		t.Errorf("getDurationEnv() = %v, %v, want 1m30s", got, err)
	}
}

var configKeys = []string{
	"SERVER_PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"STORE_DRIVER", "SQLITE_PATH", "JWT_SECRET", "JWT_EXPIRY_HOURS",
	"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "CORS_ALLOWED_ORIGINS",
	"MQTT_URL", "MQTT_TOPIC", "MQTT_CLIENT_ID", "LIMIT_INTERVAL_MIN", "DEFAULT_INTERVAL_MIN",
	"FORECAST_URL", "FORECAST_TIMEOUT", "FORECAST_MAX_RETRIES", "FORECAST_INTERVAL", "MODEL_VERSION",
	"INGEST_DIR", "METRICS_ADDR", "LOG_VERBOSE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, DriverPostgres)
	}
	if cfg.JWT.ExpiryHours != 24 {
		t.Errorf("JWT.ExpiryHours = %d, want 24", cfg.JWT.ExpiryHours)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want 6379", cfg.Redis.Port)
	}
	if cfg.CORS.AllowedOrigins != "*" {
		t.Errorf("CORS.AllowedOrigins = %q, want %q", cfg.CORS.AllowedOrigins, "*")
	}
	if cfg.Pipeline.LimitInterval != 15*time.Minute {
		t.Errorf("Pipeline.LimitInterval = %s, want 15m", cfg.Pipeline.LimitInterval)
	}
	if cfg.Pipeline.DefaultInterval != 10*time.Minute {
		t.Errorf("Pipeline.DefaultInterval = %s, want 10m", cfg.Pipeline.DefaultInterval)
	}
	if cfg.Forecast.URL != "" {
		t.Errorf("Forecast.URL = %q, want empty", cfg.Forecast.URL)
	}
	if cfg.Forecast.MaxRetries != 3 {
		t.Errorf("Forecast.MaxRetries = %d, want 3", cfg.Forecast.MaxRetries)
	}
}

func TestLoadConfigCustom(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("DB_HOST", "db.prod")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LIMIT_INTERVAL_MIN", "30")
	t.Setenv("FORECAST_INTERVAL", "5m")
	t.Setenv("LOG_VERBOSE", "1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.prod" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.prod")
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, DriverSQLite)
	}
	if cfg.Pipeline.LimitInterval != 30*time.Minute {
		t.Errorf("Pipeline.LimitInterval = %s, want 30m", cfg.Pipeline.LimitInterval)
	}
	if cfg.Forecast.Interval != 5*time.Minute {
		t.Errorf("Forecast.Interval = %s, want 5m", cfg.Forecast.Interval)
	}
	if !cfg.Log.Verbose {
		t.Error("Log.Verbose = false, want true")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SERVER_PORT", "invalid"},
		{"LIMIT_INTERVAL_MIN", "0"},
		{"DEFAULT_INTERVAL_MIN", "-5"},
		{"STORE_DRIVER", "mysql"},
		{"FORECAST_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
