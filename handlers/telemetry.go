package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleettemp/pipeline"
	"fleettemp/services"
	"fleettemp/store"
)

const cacheTTL = 30 * time.Second

type TelemetryHandler struct {
	reader store.Reader
	cache  *services.CacheService
	log    *slog.Logger
}

func NewTelemetryHandler(reader store.Reader, cache *services.CacheService, log *slog.Logger) *TelemetryHandler {
	return &TelemetryHandler{reader: reader, cache: cache, log: log}
}

func (h *TelemetryHandler) cacheSet(key string, value any) {
	if !h.cache.Available() {
		return
	}
	go func() {
		if err := h.cache.Set(context.Background(), key, value, cacheTTL); err != nil {
			h.log.Warn("cache set failed", "key", key, "error", err)
		}
	}()
}

// load reads the selected rows, answering the request itself on failure.
func (h *TelemetryHandler) load(c *gin.Context) (store.Selection, []pipeline.Record, bool) {
	sel, err := parseSelection(c)
	if err != nil {
		badRequest(c, err)
		return sel, nil, false
	}
	rows, ok := h.rows(c, sel)
	return sel, rows, ok
}

func (h *TelemetryHandler) rows(c *gin.Context, sel store.Selection) ([]pipeline.Record, bool) {
	rows, err := h.reader.Range(c.Request.Context(), sel)
	if err != nil {
		h.log.Error("range query failed", "plate", sel.VehiclePlate, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return nil, false
	}
	return rows, true
}

// ListVehicles serves GET /api/vehicles.
func (h *TelemetryHandler) ListVehicles(c *gin.Context) {
	const cacheKey = services.VehiclesCacheKey
	var cached []store.Vehicle
	if found, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && found {
		c.JSON(http.StatusOK, gin.H{"data": cached})
		return
	}

	vehicles, err := h.reader.Vehicles(c.Request.Context())
	if err != nil {
		h.log.Error("vehicles query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}
	if vehicles == nil {
		vehicles = []store.Vehicle{}
	}
	h.cacheSet(cacheKey, vehicles)
	c.JSON(http.StatusOK, gin.H{"data": vehicles})
}

// GetTelemetry serves the canonical rows of one vehicle, a page at a time.
func (h *TelemetryHandler) GetTelemetry(c *gin.Context) {
	p := ParsePagination(c)
	sel, err := parseSelection(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if p.After != nil {
		if next := p.After.Truncate(time.Second).Add(time.Second); next.After(sel.Start) {
			sel.Start = next
		}
	}
	// one extra row tells whether another page follows
	sel.Limit = p.Limit + 1
	rows, ok := h.rows(c, sel)
	if !ok {
		return
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].Timestamp.Format(time.RFC3339Nano)
	}
	if rows == nil {
		rows = []pipeline.Record{}
	}
	c.JSON(http.StatusOK, CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore})
}

type gapsResponse struct {
	pipeline.GapReport
	AverageFormatted string `json:"average_formatted"`
	TotalFormatted   string `json:"total_formatted"`
	NoData           bool   `json:"no_data"`
}

// GetGaps serves the gap blocks of one vehicle.
func (h *TelemetryHandler) GetGaps(c *gin.Context) {
	sel, rows, ok := h.load(c)
	if !ok {
		return
	}
	report, err := pipeline.FindGapBlocks(sel.VehiclePlate, rows)
	if err != nil && !errors.Is(err, pipeline.ErrEmptyDataset) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gapsResponse{
		GapReport:        report,
		AverageFormatted: report.FormatAverage(),
		TotalFormatted:   report.FormatTotal(),
		NoData:           err != nil,
	})
}

type displayPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Temp1         *float64  `json:"temp1"`
	PredictedTemp *float64  `json:"predicted_temp"`
	Display       *float64  `json:"display"`
	IsSynthetic   bool      `json:"is_synthetic"`
}

// GetDisplay serves the chart series: real readings, forecasts, and the
// seam-bridged predicted line.
func (h *TelemetryHandler) GetDisplay(c *gin.Context) {
	_, rows, ok := h.load(c)
	if !ok {
		return
	}
	series := pipeline.DisplaySeries(rows)
	out := make([]displayPoint, len(rows))
	for i, r := range rows {
		out[i] = displayPoint{
			Timestamp:     r.Timestamp,
			Temp1:         r.Temp1,
			PredictedTemp: r.PredictedTemp,
			Display:       series[i],
			IsSynthetic:   r.IsSynthetic,
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GetSummary serves statistics over the selection; bin is "hour" or "day".
func (h *TelemetryHandler) GetSummary(c *gin.Context) {
	var bin time.Duration
	switch c.DefaultQuery("bin", "day") {
	case "hour":
		bin = time.Hour
	case "day":
		bin = 24 * time.Hour
	default:
		badRequest(c, errors.New("bin must be hour or day"))
		return
	}

	cacheKey := services.SummaryCacheKey(c.Param("plate"), c.Query("start"), c.Query("end"), bin)
	var cached pipeline.Summary
	if found, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && found {
		c.JSON(http.StatusOK, cached)
		return
	}

	sel, rows, ok := h.load(c)
	if !ok {
		return
	}
	summary, err := pipeline.Summarize(sel.VehiclePlate, rows, bin)
	if errors.Is(err, pipeline.ErrEmptyDataset) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.cacheSet(cacheKey, summary)
	c.JSON(http.StatusOK, summary)
}

// GetExcursions serves the runs outside [low, high].
func (h *TelemetryHandler) GetExcursions(c *gin.Context) {
	lim := pipeline.DefaultLimits
	for name, dst := range map[string]*float64{"low": &lim.Low, "high": &lim.High} {
		if v := c.Query(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				badRequest(c, fmt.Errorf("invalid %s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	if lim.Low >= lim.High {
		badRequest(c, errors.New("low must be below high"))
		return
	}

	_, rows, ok := h.load(c)
	if !ok {
		return
	}
	excursions := pipeline.Excursions(rows, lim)
	if excursions == nil {
		excursions = []pipeline.Excursion{}
	}
	c.JSON(http.StatusOK, gin.H{"limits": lim, "data": excursions})
}
