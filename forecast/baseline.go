package forecast

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"fleettemp/pipeline"
)

// minRegressionRows is the fewest paired (temp1, temp2) readings a vehicle
// needs before its temp2 regression is used.
const minRegressionRows = 3

// Baseline is a local forecaster trained per request on the vehicle's own
// readings. predicted_temp is the mean temp1 for the target's hour of day,
// falling back to the overall mean. predicted_temp2 is a least-squares fit of
// temp1 on temp2, set only for targets that carry a temp2 reading.
type Baseline struct{}

type baselineModel struct {
	overall float64
	hourly  map[int]float64
	// temp1 = alpha + beta*temp2
	alpha, beta float64
	regression  bool
}

func (Baseline) Predict(_ context.Context, req Request) ([]pipeline.PredictionRecord, error) {
	m, ok := fit(req.History)
	if !ok {
		return nil, nil
	}

	targets := req.Targets
	if len(targets) == 0 {
		targets = make([]pipeline.Record, len(req.Timestamps))
		for i, ts := range req.Timestamps {
			targets[i] = pipeline.Record{VehiclePlate: req.VehiclePlate, Timestamp: ts}
		}
	}

	out := make([]pipeline.PredictionRecord, 0, len(targets))
	for _, t := range targets {
		p := pipeline.PredictionRecord{VehiclePlate: req.VehiclePlate, Timestamp: t.Timestamp}
		v := m.overall
		if h, ok := m.hourly[t.Timestamp.Hour()]; ok {
			v = h
		}
		p.PredictedTemp = &v
		if m.regression && t.Temp2 != nil {
			r := m.alpha + m.beta**t.Temp2
			p.PredictedTemp2 = &r
		}
		out = append(out, p)
	}
	return out, nil
}

func fit(history []pipeline.Record) (baselineModel, bool) {
	var (
		all    []float64
		byHour = make(map[int][]float64)
		xs, ys []float64
	)
	for _, r := range history {
		if r.Temp1 == nil || math.IsNaN(*r.Temp1) {
			continue
		}
		all = append(all, *r.Temp1)
		h := r.Timestamp.Hour()
		byHour[h] = append(byHour[h], *r.Temp1)
		if r.Temp2 != nil && !math.IsNaN(*r.Temp2) {
			xs = append(xs, *r.Temp2)
			ys = append(ys, *r.Temp1)
		}
	}
	if len(all) == 0 {
		return baselineModel{}, false
	}

	m := baselineModel{
		overall: stat.Mean(all, nil),
		hourly:  make(map[int]float64, len(byHour)),
	}
	for h, vs := range byHour {
		m.hourly[h] = stat.Mean(vs, nil)
	}
	if len(xs) >= minRegressionRows && stat.Variance(xs, nil) > 0 {
		m.alpha, m.beta = stat.LinearRegression(xs, ys, nil, false)
		m.regression = true
	}
	return m, true
}
