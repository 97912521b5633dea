package pipeline

import "time"

// Limits is the accepted temperature band for a cargo.
type Limits struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// DefaultLimits matches the dashboard's initial slider selection.
var DefaultLimits = Limits{Low: 5, High: 20}

// Excursion is a maximal run of rows whose temperature lies outside Limits.
type Excursion struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Rows      int       `json:"rows"`
	Peak      float64   `json:"peak"`
	Predicted bool      `json:"predicted"`
}

// Excursions scans rows of one vehicle in timestamp order. The value checked
// per row is temp1, else predicted_temp; rows with neither end a run. Predicted
// is set when any value in the run came from a forecast.
func Excursions(rows []Record, lim Limits) []Excursion {
	out := []Excursion{}
	var cur *Excursion
	for _, r := range rows {
		v, predicted := r.Temp1, false
		if v == nil {
			v, predicted = r.PredictedTemp, r.PredictedTemp != nil
		}
		if v == nil || (*v >= lim.Low && *v <= lim.High) {
			cur = nil
			continue
		}
		if cur == nil {
			out = append(out, Excursion{Start: r.Timestamp, Peak: *v})
			cur = &out[len(out)-1]
		}
		cur.End = r.Timestamp
		cur.Rows++
		cur.Predicted = cur.Predicted || predicted
		if distance(*v, lim) > distance(cur.Peak, lim) {
			cur.Peak = *v
		}
	}
	return out
}

func distance(v float64, lim Limits) float64 {
	switch {
	case v < lim.Low:
		return lim.Low - v
	case v > lim.High:
		return v - lim.High
	default:
		return 0
	}
}
