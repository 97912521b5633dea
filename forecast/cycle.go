package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleettemp/metrics"
	"fleettemp/pipeline"
	"fleettemp/store"
)

// PredictionsChannel carries one VehicleEvent per vehicle with applied
// predictions.
const PredictionsChannel = "fleettemp:predictions"

type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) error
}

// Invalidator drops cached responses derived from the given vehicles.
type Invalidator interface {
	InvalidateVehicles(ctx context.Context, plates []string) error
}

type CycleConfig struct {
	Logger     *slog.Logger
	Store      store.Writer
	Forecaster Forecaster
	// Publisher and Cache are optional.
	Publisher Publisher
	Cache     Invalidator
}

func (cfg *CycleConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Forecaster == nil {
		return errors.New("forecaster is required")
	}
	return nil
}

// Cycle runs one forecast and reconciliation pass over every vehicle.
type Cycle struct {
	log *slog.Logger
	cfg CycleConfig
}

func NewCycle(cfg CycleConfig) (*Cycle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cycle config: %w", err)
	}
	return &Cycle{log: cfg.Logger, cfg: cfg}, nil
}

type CycleResult struct {
	Vehicles  int
	Requested int
	Applied   int64
	Unknown   int
	Failed    int
}

type VehicleEvent struct {
	VehiclePlate string    `json:"vehicle_plate"`
	Applied      int64     `json:"applied"`
	At           time.Time `json:"at"`
}

// Run forecasts the unmeasured rows of each vehicle and writes the reconciled
// values back. A failing vehicle is logged and skipped; its error is part of
// the joined error returned at the end.
func (c *Cycle) Run(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	var res CycleResult
	vehicles, err := c.cfg.Store.Vehicles(ctx)
	if err != nil {
		return res, fmt.Errorf("list vehicles: %w", err)
	}
	res.Vehicles = len(vehicles)
	known := make([]string, len(vehicles))
	for i, v := range vehicles {
		known[i] = v.VehiclePlate
	}

	var errs []error
	for _, v := range vehicles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		applied, requested, unknown, err := c.runVehicle(ctx, v.VehiclePlate, known)
		res.Requested += requested
		res.Applied += applied
		res.Unknown += unknown
		if err != nil {
			res.Failed++
			metrics.ForecastFailures.Inc()
			c.log.Error("forecast failed", "plate", v.VehiclePlate, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", v.VehiclePlate, err))
		}
	}

	c.log.Info("forecast cycle completed",
		"vehicles", res.Vehicles,
		"requested", res.Requested,
		"applied", res.Applied,
		"unknown", res.Unknown,
		"failed", res.Failed,
		"duration", time.Since(start))
	return res, errors.Join(errs...)
}

func (c *Cycle) runVehicle(ctx context.Context, plate string, known []string) (applied int64, requested, unknown int, err error) {
	targets, err := c.cfg.Store.Unmeasured(ctx, plate)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("load unmeasured rows: %w", err)
	}
	if len(targets) == 0 {
		return 0, 0, 0, nil
	}
	rows, err := c.cfg.Store.Range(ctx, store.Selection{VehiclePlate: plate})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("load history: %w", err)
	}
	history := make([]pipeline.Record, 0, len(rows))
	for _, r := range rows {
		if r.Measured() {
			history = append(history, r)
		}
	}

	preds, err := c.cfg.Forecaster.Predict(ctx, Request{
		VehiclePlate: plate,
		Timestamps:   pipeline.UnmeasuredTimestamps(targets),
		History:      history,
		Targets:      targets,
	})
	if err != nil {
		return 0, len(targets), 0, err
	}

	rec := pipeline.Reconcile(targets, preds, known...)
	for _, u := range rec.Unknown {
		metrics.UnknownVehicles.Inc()
		c.log.Warn("dropping prediction", "error", u)
	}
	if rec.Unmatched > 0 {
		c.log.Debug("predictions without a pending row", "plate", plate, "count", rec.Unmatched)
	}
	if len(rec.Updated) == 0 {
		return 0, len(targets), len(rec.Unknown), nil
	}

	applied, err = c.cfg.Store.ApplyPredictions(ctx, rec.Updated)
	if err != nil {
		return 0, len(targets), len(rec.Unknown), fmt.Errorf("apply predictions: %w", err)
	}
	metrics.PredictionsApplied.Add(float64(applied))
	c.log.Debug("predictions applied", "plate", plate, "targets", len(targets), "applied", applied)

	if c.cfg.Cache != nil && applied > 0 {
		if err := c.cfg.Cache.InvalidateVehicles(ctx, []string{plate}); err != nil {
			c.log.Warn("cache invalidation failed", "plate", plate, "error", err)
		}
	}
	if c.cfg.Publisher != nil && applied > 0 {
		event := VehicleEvent{VehiclePlate: plate, Applied: applied, At: time.Now().UTC()}
		if err := c.cfg.Publisher.PublishJSON(ctx, PredictionsChannel, event); err != nil {
			c.log.Warn("publish predictions event failed", "plate", plate, "error", err)
		}
	}
	return applied, len(targets), len(rec.Unknown), nil
}
