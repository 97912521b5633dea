package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	JWT      JWTConfig
	Redis    RedisConfig
	CORS     CORSConfig
	MQTT     MQTTConfig
	Pipeline PipelineConfig
	Forecast ForecastConfig
	Ingest   IngestConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type StoreConfig struct {
	Driver     string
	SQLitePath string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CORSConfig struct {
	AllowedOrigins string
}

type MQTTConfig struct {
	URL      string
	Topic    string
	ClientID string
}

// PipelineConfig holds the upsampling intervals.
type PipelineConfig struct {
	LimitInterval   time.Duration
	DefaultInterval time.Duration
}

type ForecastConfig struct {
	// URL of the external forecaster; empty selects the local baseline model.
	URL          string
	Timeout      time.Duration
	MaxRetries   int
	Interval     time.Duration
	ModelVersion string
}

type IngestConfig struct {
	Dir string
}

type MetricsConfig struct {
	Addr string
}

type LogConfig struct {
	Verbose bool
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	limitMin, err := getIntEnv("LIMIT_INTERVAL_MIN", 15)
	if err != nil {
		return nil, fmt.Errorf("invalid LIMIT_INTERVAL_MIN: %w", err)
	}
	defaultMin, err := getIntEnv("DEFAULT_INTERVAL_MIN", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_INTERVAL_MIN: %w", err)
	}
	if limitMin <= 0 || defaultMin <= 0 {
		return nil, errors.New("LIMIT_INTERVAL_MIN and DEFAULT_INTERVAL_MIN must be positive")
	}

	forecastTimeout, err := getDurationEnv("FORECAST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_TIMEOUT: %w", err)
	}
	forecastRetries, err := getIntEnv("FORECAST_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_MAX_RETRIES: %w", err)
	}
	forecastInterval, err := getDurationEnv("FORECAST_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_INTERVAL: %w", err)
	}

	verbose, err := getBoolEnv("LOG_VERBOSE", false)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_VERBOSE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "fleettemp"),
			Password: getEnv("DB_PASSWORD", "fleettemp_dev_password"),
			Name:     getEnv("DB_NAME", "fleettemp"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Store: StoreConfig{
			Driver:     getEnv("STORE_DRIVER", DriverPostgres),
			SQLitePath: getEnv("SQLITE_PATH", "fleettemp.db"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpiryHours: jwtExpiry,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		MQTT: MQTTConfig{
			URL:      getEnv("MQTT_URL", "tcp://localhost:1883"),
			Topic:    getEnv("MQTT_TOPIC", "fleettemp/batches/+"),
			ClientID: getEnv("MQTT_CLIENT_ID", ""),
		},
		Pipeline: PipelineConfig{
			LimitInterval:   time.Duration(limitMin) * time.Minute,
			DefaultInterval: time.Duration(defaultMin) * time.Minute,
		},
		Forecast: ForecastConfig{
			URL:          getEnv("FORECAST_URL", ""),
			Timeout:      forecastTimeout,
			MaxRetries:   forecastRetries,
			Interval:     forecastInterval,
			ModelVersion: getEnv("MODEL_VERSION", "baseline-v1"),
		},
		Ingest: IngestConfig{
			Dir: getEnv("INGEST_DIR", ""),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		Log: LogConfig{
			Verbose: verbose,
		},
	}

	switch cfg.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.Store.Driver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
