package pipeline

import (
	"time"
)

var base = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

func str(s string) *string { return &s }

func at(m float64) time.Time {
	return base.Add(time.Duration(m * float64(time.Minute)))
}

func measured(plate string, m, temp float64) Record {
	r := Record{VehicleID: "v-" + plate, VehiclePlate: plate, Timestamp: at(m), Temp1: f64(temp)}
	deriveCalendar(&r)
	return r
}

func synthetic(plate string, m float64) Record {
	r := Record{VehicleID: "v-" + plate, VehiclePlate: plate, Timestamp: at(m), IsSynthetic: true}
	deriveCalendar(&r)
	return r
}

func timestamps(rows []Record) []time.Time {
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.Timestamp
	}
	return out
}
