package models

import (
	"time"

	"fleettemp/pipeline"
)

// TelemetryRecord maps a canonical_telemetry row for gorm reads.
type TelemetryRecord struct {
	VehiclePlate    string    `gorm:"column:vehicle_plate;primaryKey" json:"vehicle_plate"`
	TS              time.Time `gorm:"column:ts;primaryKey" json:"timestamp"`
	VehicleID       string    `gorm:"column:vehicle_id" json:"vehicle_id"`
	Driver          *string   `gorm:"column:driver" json:"driver"`
	Longitude       *float64  `gorm:"column:longitude" json:"longitude"`
	Location        *string   `gorm:"column:location" json:"location"`
	TerminalSerial  *string   `gorm:"column:terminal_serial" json:"terminal_serial"`
	OutSpeed        *float64  `gorm:"column:out_speed" json:"out_speed"`
	Odometer        *float64  `gorm:"column:odometer" json:"odometer"`
	Door1Status     *string   `gorm:"column:door1_status" json:"door1_status"`
	Door2Status     *string   `gorm:"column:door2_status" json:"door2_status"`
	Ignition        *bool     `gorm:"column:ignition" json:"ignition"`
	Temp1           *float64  `gorm:"column:temp1" json:"temp1"`
	Temp2           *float64  `gorm:"column:temp2" json:"temp2"`
	Temp3           *float64  `gorm:"column:temp3" json:"temp3"`
	Temp4           *float64  `gorm:"column:temp4" json:"temp4"`
	DayOfWeek       string    `gorm:"column:day_of_week" json:"day_of_week"`
	Hour            *int      `gorm:"column:hour" json:"hour"`
	IntervalSeconds *int64    `gorm:"column:interval_seconds" json:"interval_seconds"`
	IsSynthetic     bool      `gorm:"column:is_synthetic" json:"is_synthetic"`
	PredictedTemp   *float64  `gorm:"column:predicted_temp" json:"predicted_temp"`
	PredictedTemp2  *float64  `gorm:"column:predicted_temp2" json:"predicted_temp2"`
}

func (TelemetryRecord) TableName() string { return "canonical_telemetry" }

func (t TelemetryRecord) Record() pipeline.Record {
	return pipeline.Record{
		VehicleID:       t.VehicleID,
		VehiclePlate:    t.VehiclePlate,
		Timestamp:       t.TS.UTC(),
		Driver:          t.Driver,
		Longitude:       t.Longitude,
		Location:        t.Location,
		TerminalSerial:  t.TerminalSerial,
		OutSpeed:        t.OutSpeed,
		Odometer:        t.Odometer,
		Door1Status:     t.Door1Status,
		Door2Status:     t.Door2Status,
		Ignition:        t.Ignition,
		Temp1:           t.Temp1,
		Temp2:           t.Temp2,
		Temp3:           t.Temp3,
		Temp4:           t.Temp4,
		DayOfWeek:       t.DayOfWeek,
		Hour:            t.Hour,
		IntervalSeconds: t.IntervalSeconds,
		IsSynthetic:     t.IsSynthetic,
		PredictedTemp:   t.PredictedTemp,
		PredictedTemp2:  t.PredictedTemp2,
	}
}
