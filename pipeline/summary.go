package pipeline

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary holds the per-selection statistics shown next to the temperature
// chart.
type Summary struct {
	VehiclePlate string   `json:"vehicle_plate"`
	Rows         int      `json:"rows"`
	MinTemp      *float64 `json:"min_temp"`
	MeanTemp     *float64 `json:"mean_temp"`
	MaxTemp      *float64 `json:"max_temp"`
	Registered   int      `json:"registered"`
	Predicted    int      `json:"predicted"`

	// RegisteredShare is Registered / (Registered + Predicted).
	RegisteredShare   *float64 `json:"registered_share"`
	MeanIntervalMin   *float64 `json:"mean_interval_min"`
	StdDevIntervalMin *float64 `json:"stddev_interval_min"`
	Buckets           []Bucket `json:"buckets"`
}

// Bucket counts measured readings within one hour or day.
type Bucket struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Summarize computes statistics over rows of one vehicle in timestamp order.
// bin selects the histogram width and must be time.Hour or 24*time.Hour; any
// other value disables the histogram.
func Summarize(plate string, rows []Record, bin time.Duration) (Summary, error) {
	s := Summary{VehiclePlate: plate, Rows: len(rows), Buckets: []Bucket{}}
	if len(rows) == 0 {
		return s, &EmptyDatasetError{VehiclePlate: plate, What: "rows in range"}
	}

	var temps []float64
	for _, r := range rows {
		if r.Temp1 != nil {
			temps = append(temps, *r.Temp1)
		}
		if r.PredictedTemp != nil {
			s.Predicted++
		}
	}
	s.Registered = len(temps)
	if len(temps) > 0 {
		lo, hi := temps[0], temps[0]
		for _, t := range temps {
			lo = math.Min(lo, t)
			hi = math.Max(hi, t)
		}
		mean := stat.Mean(temps, nil)
		s.MinTemp, s.MaxTemp, s.MeanTemp = &lo, &hi, &mean
	}
	if total := s.Registered + s.Predicted; total > 0 {
		share := float64(s.Registered) / float64(total)
		s.RegisteredShare = &share
	}

	if len(rows) > 1 {
		intervals := make([]float64, 0, len(rows)-1)
		for i := 1; i < len(rows); i++ {
			intervals = append(intervals, rows[i].Timestamp.Sub(rows[i-1].Timestamp).Minutes())
		}
		mean, std := stat.MeanStdDev(intervals, nil)
		mean = roundTo(mean, 1)
		s.MeanIntervalMin = &mean
		if len(intervals) > 1 {
			std = roundTo(std, 1)
			s.StdDevIntervalMin = &std
		}
	}

	s.Buckets = histogram(rows, bin)
	return s, nil
}

func histogram(rows []Record, bin time.Duration) []Bucket {
	if bin != time.Hour && bin != 24*time.Hour {
		return []Bucket{}
	}
	first := rows[0].Timestamp.Truncate(bin)
	last := rows[len(rows)-1].Timestamp.Truncate(bin)
	n := int(last.Sub(first)/bin) + 1
	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].Start = first.Add(time.Duration(i) * bin)
	}
	for _, r := range rows {
		if r.Temp1 == nil {
			continue
		}
		buckets[int(r.Timestamp.Truncate(bin).Sub(first)/bin)].Count++
	}
	return buckets
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
