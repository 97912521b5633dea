package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fleettemp/models"
	"fleettemp/pipeline"
)

// GormReader serves API reads from the same table through gorm.
type GormReader struct {
	db *gorm.DB
}

func NewGormReader(db *gorm.DB) *GormReader {
	return &GormReader{db: db}
}

func (g *GormReader) Vehicles(ctx context.Context) ([]Vehicle, error) {
	var out []Vehicle
	err := g.db.WithContext(ctx).
		Model(&models.TelemetryRecord{}).
		Select("vehicle_plate, MIN(ts) AS first_ts, MAX(ts) AS last_ts, COUNT(*) AS row_count").
		Group("vehicle_plate").
		Order("vehicle_plate").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	for i := range out {
		out[i].First, out[i].Last = out[i].First.UTC(), out[i].Last.UTC()
	}
	return out, nil
}

func (g *GormReader) Range(ctx context.Context, sel Selection) ([]pipeline.Record, error) {
	query := g.db.WithContext(ctx).Where("vehicle_plate = ?", sel.VehiclePlate)
	if !sel.Start.IsZero() {
		query = query.Where("ts >= ?", sel.Start.UTC())
	}
	if !sel.End.IsZero() {
		query = query.Where("ts <= ?", sel.End.UTC())
	}

	query = query.Order("ts ASC")
	if sel.Limit > 0 {
		query = query.Limit(sel.Limit)
	}

	var rows []models.TelemetryRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	out := make([]pipeline.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out, nil
}
