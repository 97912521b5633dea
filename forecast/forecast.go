// Package forecast fills unmeasured rows of the canonical dataset with
// predicted temperatures.
package forecast

import (
	"context"
	"time"

	"fleettemp/pipeline"
)

// Request asks for predictions at the timestamps of one vehicle's unmeasured
// rows. History holds that vehicle's rows with a real reading.
type Request struct {
	VehiclePlate string            `json:"vehicle_plate"`
	Timestamps   []time.Time       `json:"timestamps"`
	History      []pipeline.Record `json:"-"`
	Targets      []pipeline.Record `json:"-"`
}

// Forecaster predicts temperatures. Results may cover a subset of the
// requested timestamps and may carry nil values.
type Forecaster interface {
	Predict(ctx context.Context, req Request) ([]pipeline.PredictionRecord, error)
}

// ForecasterFunc adapts a function to Forecaster.
type ForecasterFunc func(ctx context.Context, req Request) ([]pipeline.PredictionRecord, error)

func (f ForecasterFunc) Predict(ctx context.Context, req Request) ([]pipeline.PredictionRecord, error) {
	return f(ctx, req)
}
