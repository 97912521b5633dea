// Command predictor periodically forecasts the unmeasured placeholder rows of
// every vehicle and writes the reconciled predictions back to the dataset.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleettemp/config"
	"fleettemp/forecast"
	"fleettemp/logging"
	"fleettemp/metrics"
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
		log.Error("predictor failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	w, err := store.Open(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer w.Close()

	cache, err := services.NewCacheService(ctx, log, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, prediction events disabled", "error", err)
	}
	defer cache.Close()

	ccfg := forecast.CycleConfig{
		Logger:     log,
		Store:      w,
		Forecaster: newForecaster(cfg.Forecast, log),
	}
	if cache.Available() {
		ccfg.Publisher = cache
		ccfg.Cache = cache
	}
	cycle, err := forecast.NewCycle(ccfg)
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, log, cfg.Metrics.Addr); err != nil {
			log.Error("metrics server failed", "error", err)
		}
	}()

	log.Info("predictor running",
		"interval", cfg.Forecast.Interval,
		"forecaster", forecasterName(cfg.Forecast),
		"model", cfg.Forecast.ModelVersion)
	loop(ctx, cfg.Forecast.Interval, log, cycle.Run)
	log.Info("predictor shutting down")
	return nil
}

// newForecaster selects the remote model when a URL is configured and the
// local baseline otherwise.
func newForecaster(cfg config.ForecastConfig, log *slog.Logger) forecast.Forecaster {
	if cfg.URL == "" {
		return forecast.Baseline{}
	}
	tries := cfg.MaxRetries
	if tries < 1 {
		tries = 1
	}
	client := forecast.NewHTTPClient(cfg.URL, cfg.ModelVersion, cfg.Timeout)
	return forecast.WithRetry(client, log, uint(tries))
}

func forecasterName(cfg config.ForecastConfig) string {
	if cfg.URL == "" {
		return "baseline"
	}
	return cfg.URL
}

// loop runs fn once immediately and then on every tick until ctx ends.
func loop(ctx context.Context, interval time.Duration, log *slog.Logger, fn func(context.Context) (forecast.CycleResult, error)) {
	runOnce := func() {
		if _, err := fn(ctx); err != nil && ctx.Err() == nil {
			log.Warn("forecast cycle finished with errors", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-ctx.Done():
			return
		}
	}
}
