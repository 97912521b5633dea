package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fleettemp/config"
	"fleettemp/forecast"
	"fleettemp/logging"
)

func TestNewForecaster(t *testing.T) {
	t.Run("baseline when no URL is set", func(t *testing.T) {
		f := newForecaster(config.ForecastConfig{}, logging.Discard())
		if _, ok := f.(forecast.Baseline); !ok {
			t.Errorf("newForecaster() = %T, want forecast.Baseline", f)
		}
		if got := forecasterName(config.ForecastConfig{}); got != "baseline" {
			t.Errorf("forecasterName() = %q, want baseline", got)
		}
	})

	t.Run("remote client when URL is set", func(t *testing.T) {
		cfg := config.ForecastConfig{URL: "http://model:8000/predict", Timeout: time.Second, MaxRetries: 0}
		f := newForecaster(cfg, logging.Discard())
		if _, ok := f.(forecast.Baseline); ok {
			t.Error("expected a remote forecaster")
		}
		if f == nil {
			t.Fatal("newForecaster() returned nil")
		}
	})
}

func TestLoop(t *testing.T) {
	t.Run("runs immediately and on every tick", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		done := make(chan struct{})
		go func() {
			loop(ctx, 10*time.Millisecond, logging.Discard(), func(context.Context) (forecast.CycleResult, error) {
				if calls.Add(1) == 3 {
					cancel()
				}
				return forecast.CycleResult{}, nil
			})
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop after cancel")
		}
		if got := calls.Load(); got < 3 {
			t.Errorf("calls = %d, want at least 3", got)
		}
	})

	t.Run("a failing cycle does not stop the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var calls atomic.Int32
		done := make(chan struct{})
		go func() {
			loop(ctx, 5*time.Millisecond, logging.Discard(), func(context.Context) (forecast.CycleResult, error) {
				if calls.Add(1) >= 2 {
					cancel()
				}
				return forecast.CycleResult{Failed: 1}, errors.New("model offline")
			})
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop after cancel")
		}
		if got := calls.Load(); got < 2 {
			t.Errorf("calls = %d, want at least 2", got)
		}
	})
}
