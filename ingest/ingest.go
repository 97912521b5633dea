// Package ingest runs raw telemetry batches through normalization, gap
// upsampling and the merge into the canonical dataset.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleettemp/metrics"
	"fleettemp/pipeline"
	"fleettemp/store"
)

// LiveChannel carries one Event per merged batch.
const LiveChannel = "fleettemp:live"

// Publisher fans ingestion events out to live subscribers.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) error
}

// Invalidator drops cached responses derived from the given vehicles.
type Invalidator interface {
	InvalidateVehicles(ctx context.Context, plates []string) error
}

type Config struct {
	Logger *slog.Logger
	Store  store.Writer
	// Limit is the longest interval left unbridged; Step is the target spacing
	// of the placeholders inserted into longer ones.
	Limit time.Duration
	Step  time.Duration
	// Publisher and Cache are optional.
	Publisher Publisher
	Cache     Invalidator
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Limit <= 0 {
		return errors.New("limit interval must be positive")
	}
	if cfg.Step <= 0 {
		return errors.New("default interval must be positive")
	}
	return nil
}

// Ingester serializes batch ingestion against one store.
type Ingester struct {
	log *slog.Logger
	cfg Config
	mu  sync.Mutex
}

func New(cfg Config) (*Ingester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	return &Ingester{log: cfg.Logger, cfg: cfg}, nil
}

// Result describes one ingested batch.
type Result struct {
	BatchID   uuid.UUID                `json:"batch_id"`
	Report    pipeline.NormalizeReport `json:"-"`
	Vehicles  []string                 `json:"vehicles"`
	Accepted  int                      `json:"accepted"`
	Skipped   int                      `json:"skipped"`
	Synthetic int                      `json:"synthetic"`
}

// Event is published on LiveChannel after a successful merge.
type Event struct {
	BatchID   uuid.UUID `json:"batch_id"`
	Vehicles  []string  `json:"vehicles"`
	Accepted  int       `json:"accepted"`
	Synthetic int       `json:"synthetic"`
	At        time.Time `json:"at"`
}

// Ingest merges one raw batch. Records that fail normalization are skipped
// and reported in the result; a merge conflict aborts the whole batch and
// leaves the dataset unchanged.
func (i *Ingester) Ingest(ctx context.Context, raw []pipeline.RawRecord) (Result, error) {
	start := time.Now()
	metrics.BatchesReceived.Inc()

	res := Result{BatchID: uuid.New()}
	log := i.log.With("batch", res.BatchID)

	rows, report := pipeline.Normalize(raw)
	res.Report = report
	res.Accepted = report.Accepted
	res.Skipped = report.Skipped
	for _, err := range report.Errors {
		metrics.RecordsSkipped.WithLabelValues(errorKind(err)).Inc()
		log.Debug("skipped record", "error", err)
	}
	if len(rows) == 0 {
		log.Warn("batch has no usable records", "received", report.Received, "skipped", report.Skipped)
		return res, nil
	}

	rows, err := pipeline.Upsample(rows, i.cfg.Limit, i.cfg.Step)
	if err != nil {
		metrics.BatchesFailed.Inc()
		return res, fmt.Errorf("upsample: %w", err)
	}
	res.Synthetic = pipeline.CountSynthetic(rows)
	res.Vehicles = pipeline.Plates(rows)

	i.mu.Lock()
	err = i.cfg.Store.MergeVehicles(ctx, res.Vehicles, func(existing []pipeline.Record) ([]pipeline.Record, error) {
		return pipeline.Merge(existing, rows)
	})
	i.mu.Unlock()
	if err != nil {
		metrics.BatchesFailed.Inc()
		var conflict *pipeline.MergeConflictError
		if errors.As(err, &conflict) {
			metrics.MergeConflicts.Inc()
		}
		return res, fmt.Errorf("merge batch %s: %w", res.BatchID, err)
	}

	metrics.SyntheticRows.Add(float64(res.Synthetic))
	metrics.RowsMerged.Add(float64(len(rows)))
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	log.Info("batch merged",
		"vehicles", len(res.Vehicles),
		"accepted", res.Accepted,
		"duplicates", report.Duplicates,
		"skipped", res.Skipped,
		"synthetic", res.Synthetic,
		"duration", time.Since(start))

	if i.cfg.Cache != nil {
		if err := i.cfg.Cache.InvalidateVehicles(ctx, res.Vehicles); err != nil {
			log.Warn("cache invalidation failed", "error", err)
		}
	}

	if i.cfg.Publisher != nil {
		event := Event{
			BatchID:   res.BatchID,
			Vehicles:  res.Vehicles,
			Accepted:  res.Accepted,
			Synthetic: res.Synthetic,
			At:        time.Now().UTC(),
		}
		if err := i.cfg.Publisher.PublishJSON(ctx, LiveChannel, event); err != nil {
			log.Warn("publish live event failed", "error", err)
		}
	}
	return res, nil
}

func errorKind(err error) string {
	var (
		schema *pipeline.SchemaError
		parse  *pipeline.ParseError
	)
	switch {
	case errors.As(err, &schema):
		return "schema"
	case errors.As(err, &parse):
		return "parse"
	default:
		return "other"
	}
}
