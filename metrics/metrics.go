// Package metrics holds the Prometheus collectors of the fleettemp binaries
// and the small HTTP server exposing them.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BatchesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_ingest_batches_received_total",
		Help: "Total number of raw batches received for ingestion.",
	})
	BatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_ingest_batches_failed_total",
		Help: "Total number of batches rejected or failed to merge.",
	})
	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettemp_ingest_records_skipped_total",
		Help: "Total number of raw records skipped during normalization, by error kind.",
	}, []string{"kind"})
	SyntheticRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_ingest_synthetic_rows_total",
		Help: "Total number of synthetic placeholder rows produced by upsampling.",
	})
	RowsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_ingest_rows_merged_total",
		Help: "Total number of batch rows merged into the canonical dataset.",
	})
	MergeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_ingest_merge_conflicts_total",
		Help: "Total number of batches aborted by a vehicle id conflict.",
	})
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleettemp_ingest_duration_seconds",
		Help:    "Duration of a full batch ingestion.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	})

	PredictionsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_forecast_predictions_applied_total",
		Help: "Total number of predicted values written back to the dataset.",
	})
	UnknownVehicles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_forecast_unknown_vehicles_total",
		Help: "Total number of predictions dropped for vehicles not in the dataset.",
	})
	ForecastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_forecast_failures_total",
		Help: "Total number of per-vehicle forecast calls that failed after retries.",
	})
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleettemp_forecast_cycle_duration_seconds",
		Help:    "Duration of a full forecast and reconciliation cycle.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	Exports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleettemp_api_exports_total",
		Help: "Total number of CSV exports served.",
	})
)

// Handler serves /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs the metrics server on addr until ctx is cancelled.
func Serve(ctx context.Context, log *slog.Logger, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
