package pipeline

import (
	"sort"
	"time"
)

// Record is one reading, or one synthetic placeholder, for one vehicle at one
// instant. Nil pointer fields are absent values.
type Record struct {
	VehicleID      string    `json:"vehicle_id"`
	VehiclePlate   string    `json:"vehicle_plate"`
	Timestamp      time.Time `json:"timestamp"`
	Driver         *string   `json:"driver"`
	Longitude      *float64  `json:"longitude"`
	Location       *string   `json:"location"`
	TerminalSerial *string   `json:"terminal_serial"`
	OutSpeed       *float64  `json:"out_speed"`
	Odometer       *float64  `json:"odometer"`
	Door1Status    *string   `json:"door1_status"`
	Door2Status    *string   `json:"door2_status"`
	Ignition       *bool     `json:"ignition"`
	Temp1          *float64  `json:"temp1"`
	Temp2          *float64  `json:"temp2"`
	Temp3          *float64  `json:"temp3"`
	Temp4          *float64  `json:"temp4"`
	DayOfWeek      string    `json:"day_of_week"`
	Hour           *int      `json:"hour"`
	// IntervalSeconds is the gap to the previous row of the same vehicle; nil
	// for a vehicle's first row.
	IntervalSeconds *int64   `json:"interval_seconds"`
	IsSynthetic     bool     `json:"is_synthetic"`
	PredictedTemp   *float64 `json:"predicted_temp"`
	PredictedTemp2  *float64 `json:"predicted_temp2"`
}

// Key identifies a row in the canonical dataset.
type Key struct {
	VehiclePlate string
	Timestamp    time.Time
}

func (r Record) Key() Key {
	return Key{VehiclePlate: r.VehiclePlate, Timestamp: r.Timestamp}
}

// Measured reports whether the row carries a real primary temperature reading.
func (r Record) Measured() bool {
	return r.Temp1 != nil
}

// PredictionRecord is one value returned by the external forecaster.
type PredictionRecord struct {
	VehiclePlate   string    `json:"vehicle_plate"`
	Timestamp      time.Time `json:"timestamp"`
	PredictedTemp  *float64  `json:"predicted_temp"`
	PredictedTemp2 *float64  `json:"predicted_temp2,omitempty"`
}

// SortRecords orders rows by (vehicle_plate, timestamp).
func SortRecords(rows []Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].VehiclePlate != rows[j].VehiclePlate {
			return rows[i].VehiclePlate < rows[j].VehiclePlate
		}
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
}

// RecomputeIntervals sets IntervalSeconds on rows already sorted by
// (vehicle_plate, timestamp).
func RecomputeIntervals(rows []Record) {
	for i := range rows {
		if i == 0 || rows[i-1].VehiclePlate != rows[i].VehiclePlate {
			rows[i].IntervalSeconds = nil
			continue
		}
		secs := int64(rows[i].Timestamp.Sub(rows[i-1].Timestamp) / time.Second)
		rows[i].IntervalSeconds = &secs
	}
}

// Plates returns the distinct vehicle plates of rows in first-seen order.
func Plates(rows []Record) []string {
	seen := make(map[string]struct{})
	var plates []string
	for _, r := range rows {
		if _, ok := seen[r.VehiclePlate]; ok {
			continue
		}
		seen[r.VehiclePlate] = struct{}{}
		plates = append(plates, r.VehiclePlate)
	}
	return plates
}

func deriveCalendar(r *Record) {
	r.DayOfWeek = r.Timestamp.Weekday().String()
	h := r.Timestamp.Hour()
	r.Hour = &h
}
