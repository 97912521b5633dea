package pipeline

import (
	"fmt"
	"time"
)

// Upsample inserts synthetic placeholder rows into every silent interval longer
// than limit between consecutive rows of the same vehicle. rows must be sorted
// by (plate, timestamp).
//
// A gap g receives n = floor(g/step) placeholders spread uniformly over the
// open interval, so their spacing is g/(n+1) rather than exactly step. When n
// is zero nothing is inserted. Intervals are left as they are; the merge
// recomputes them.
func Upsample(rows []Record, limit, step time.Duration) ([]Record, error) {
	if limit <= 0 || step <= 0 {
		return nil, fmt.Errorf("upsample: limit (%s) and step (%s) must be positive", limit, step)
	}

	var synthetic []Record
	for i := 0; i+1 < len(rows); i++ {
		prev, next := rows[i], rows[i+1]
		if prev.VehiclePlate != next.VehiclePlate {
			continue
		}
		gap := next.Timestamp.Sub(prev.Timestamp)
		if gap <= limit {
			continue
		}
		n := int(gap / step)
		if n < 1 {
			continue
		}
		spacing := gap / time.Duration(n+1)
		last := prev.Timestamp
		for k := 1; k <= n; k++ {
			ts := prev.Timestamp.Add(spacing * time.Duration(k)).Truncate(time.Second)
			if !ts.After(last) || !ts.Before(next.Timestamp) {
				continue
			}
			last = ts
			synthetic = append(synthetic, placeholder(prev, ts))
		}
	}

	out := make([]Record, 0, len(rows)+len(synthetic))
	out = append(out, rows...)
	out = append(out, synthetic...)
	SortRecords(out)
	return out, nil
}

func placeholder(from Record, ts time.Time) Record {
	rec := Record{
		VehicleID:    from.VehicleID,
		VehiclePlate: from.VehiclePlate,
		Timestamp:    ts,
		Door1Status:  from.Door1Status,
		Door2Status:  from.Door2Status,
		Ignition:     from.Ignition,
		IsSynthetic:  true,
	}
	deriveCalendar(&rec)
	return rec
}

// CountSynthetic returns how many rows are synthetic placeholders.
func CountSynthetic(rows []Record) int {
	n := 0
	for _, r := range rows {
		if r.IsSynthetic {
			n++
		}
	}
	return n
}
