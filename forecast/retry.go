package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"fleettemp/pipeline"
)

type retrying struct {
	next     Forecaster
	log      *slog.Logger
	maxTries uint
	initial  time.Duration
}

// WithRetry retries failed calls of next with exponential backoff, at most
// maxTries attempts in total. Errors wrapped by backoff.Permanent are not
// retried.
func WithRetry(next Forecaster, log *slog.Logger, maxTries uint) Forecaster {
	if maxTries == 0 {
		maxTries = 1
	}
	return &retrying{next: next, log: log, maxTries: maxTries, initial: 500 * time.Millisecond}
}

func (r *retrying) Predict(ctx context.Context, req Request) ([]pipeline.PredictionRecord, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initial
	bo.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, func() ([]pipeline.PredictionRecord, error) {
		return r.next.Predict(ctx, req)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.log.Warn("forecast attempt failed", "plate", req.VehiclePlate, "retry_in", wait, "error", err)
		}),
	)
}
