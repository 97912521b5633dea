package pipeline

import (
	"math"
	"time"
)

// ReconcileResult is the outcome of folding one forecast response into the
// canonical rows.
type ReconcileResult struct {
	// Updated holds the unmeasured rows whose forecasts changed, in input
	// order. Rows without a fresh value keep their stored forecast and are
	// left out.
	Updated []Record
	// Unknown holds predictions naming a plate that is neither in the rows
	// nor among the known plates.
	Unknown []*UnknownVehicleError
	// Unmatched counts predictions for a known plate but no matching
	// unmeasured row, including plates outside rows.
	Unmatched int
}

// Reconcile joins preds onto the unmeasured rows by (plate, timestamp). A fresh
// forecast replaces the stored one; a missing forecast keeps it. temp1 is never
// written and measured rows are ignored.
//
// known lists further plates present in the dataset. rows usually cover one
// vehicle, so a prediction for another stored vehicle is unmatched rather
// than unknown.
func Reconcile(rows []Record, preds []PredictionRecord, known ...string) ReconcileResult {
	var res ReconcileResult

	plates := make(map[string]struct{}, len(known))
	for _, p := range known {
		plates[p] = struct{}{}
	}
	index := make(map[Key]int)
	var pending []Record
	for _, r := range rows {
		plates[r.VehiclePlate] = struct{}{}
		if r.Measured() {
			continue
		}
		index[r.Key()] = len(pending)
		pending = append(pending, r)
	}

	changed := make(map[int]bool)
	for _, p := range preds {
		if _, ok := plates[p.VehiclePlate]; !ok {
			res.Unknown = append(res.Unknown, &UnknownVehicleError{
				VehiclePlate: p.VehiclePlate,
				Timestamp:    p.Timestamp,
			})
			continue
		}
		at, ok := index[Key{VehiclePlate: p.VehiclePlate, Timestamp: wallClock(p.Timestamp)}]
		if !ok {
			res.Unmatched++
			continue
		}
		row := &pending[at]
		if v := roundTenth(p.PredictedTemp); v != nil && !sameValue(row.PredictedTemp, v) {
			row.PredictedTemp = v
			changed[at] = true
		}
		if v := roundTenth(p.PredictedTemp2); v != nil && !sameValue(row.PredictedTemp2, v) {
			row.PredictedTemp2 = v
			changed[at] = true
		}
	}
	for i, r := range pending {
		if changed[i] {
			res.Updated = append(res.Updated, r)
		}
	}
	return res
}

// UnmeasuredTimestamps lists the timestamps of rows lacking a real reading.
func UnmeasuredTimestamps(rows []Record) []time.Time {
	var out []time.Time
	for _, r := range rows {
		if !r.Measured() {
			out = append(out, r.Timestamp)
		}
	}
	return out
}

func roundTenth(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	r := math.Round(*v*10) / 10
	return &r
}

func sameValue(a, b *float64) bool {
	return a != nil && b != nil && *a == *b
}
