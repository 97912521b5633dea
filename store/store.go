// Package store persists the canonical telemetry dataset: one row per
// (vehicle_plate, ts), ordered by timestamp within a vehicle.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleettemp/pipeline"
)

// TableName is the canonical dataset table.
const TableName = "canonical_telemetry"

// ErrForeignRows is returned when a merge function yields rows for vehicles
// outside the locked set.
var ErrForeignRows = errors.New("merge produced rows outside the locked vehicles")

// Selection is the explicit (vehicle_plate, start, end) triple a query runs
// against. A zero Start or End leaves that side unbounded; both are inclusive.
// A positive Limit caps the rows returned, earliest first.
type Selection struct {
	VehiclePlate string    `json:"vehicle_plate"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Limit        int       `json:"-"`
}

// Vehicle is one plate of the dataset with its time bounds.
type Vehicle struct {
	VehiclePlate string    `json:"vehicle_plate" gorm:"column:vehicle_plate"`
	First        time.Time `json:"first" gorm:"column:first_ts"`
	Last         time.Time `json:"last" gorm:"column:last_ts"`
	Rows         int64     `json:"rows" gorm:"column:row_count"`
}

// MergeFunc receives the stored rows of the locked vehicles, sorted by
// (plate, ts), and returns their replacement.
type MergeFunc func(existing []pipeline.Record) ([]pipeline.Record, error)

// Reader is the read-only query surface used by the API.
type Reader interface {
	Vehicles(ctx context.Context) ([]Vehicle, error)
	Range(ctx context.Context, sel Selection) ([]pipeline.Record, error)
}

// Writer owns the dataset. Every mutation is atomic: readers see the dataset
// either before or after a call, never in between.
type Writer interface {
	Reader
	Migrate(ctx context.Context) error
	// MergeVehicles locks the dataset, loads the rows of plates, calls fn and
	// replaces those rows with its result. An error from fn rolls back.
	MergeVehicles(ctx context.Context, plates []string, fn MergeFunc) error
	// Unmeasured returns the rows of plate whose temp1 is null.
	Unmeasured(ctx context.Context, plate string) ([]pipeline.Record, error)
	// ApplyPredictions writes predicted_temp and predicted_temp2 of rows back
	// by key, skipping nil values and rows that hold a real reading. It
	// returns the number of rows updated.
	ApplyPredictions(ctx context.Context, rows []pipeline.Record) (int64, error)
	Close() error
}

var columns = []string{
	"vehicle_plate", "ts", "vehicle_id", "driver", "longitude", "location",
	"terminal_serial", "out_speed", "odometer", "door1_status", "door2_status",
	"ignition", "temp1", "temp2", "temp3", "temp4", "day_of_week", "hour",
	"interval_seconds", "is_synthetic", "predicted_temp", "predicted_temp2",
}

var columnList = strings.Join(columns, ", ")

// fields returns the record's column values in column order; ts is passed in
// so each driver can choose its timestamp encoding.
func fields(r *pipeline.Record, ts any) []any {
	return []any{
		r.VehiclePlate, ts, r.VehicleID, r.Driver, r.Longitude, r.Location,
		r.TerminalSerial, r.OutSpeed, r.Odometer, r.Door1Status, r.Door2Status,
		r.Ignition, r.Temp1, r.Temp2, r.Temp3, r.Temp4, r.DayOfWeek, r.Hour,
		r.IntervalSeconds, r.IsSynthetic, r.PredictedTemp, r.PredictedTemp2,
	}
}

// scanTargets returns scan destinations in column order.
func scanTargets(r *pipeline.Record, ts any) []any {
	return []any{
		&r.VehiclePlate, ts, &r.VehicleID, &r.Driver, &r.Longitude, &r.Location,
		&r.TerminalSerial, &r.OutSpeed, &r.Odometer, &r.Door1Status, &r.Door2Status,
		&r.Ignition, &r.Temp1, &r.Temp2, &r.Temp3, &r.Temp4, &r.DayOfWeek, &r.Hour,
		&r.IntervalSeconds, &r.IsSynthetic, &r.PredictedTemp, &r.PredictedTemp2,
	}
}

func checkPlates(plates []string, rows []pipeline.Record) error {
	allowed := make(map[string]struct{}, len(plates))
	for _, p := range plates {
		allowed[p] = struct{}{}
	}
	for _, r := range rows {
		if _, ok := allowed[r.VehiclePlate]; !ok {
			return fmt.Errorf("%w: %s", ErrForeignRows, r.VehiclePlate)
		}
	}
	return nil
}
