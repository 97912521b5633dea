package pipeline

// DisplaySeries derives the display-only series that joins measured and
// predicted line segments. rows must belong to one vehicle, in timestamp order.
//
// The first and last point take predicted_temp as is. An interior point takes
// predicted_temp when present; otherwise it takes temp1 if a neighbour has a
// prediction, and stays nil if neither does.
func DisplaySeries(rows []Record) []*float64 {
	out := make([]*float64, len(rows))
	last := len(rows) - 1
	for i, r := range rows {
		switch {
		case i == 0 || i == last:
			out[i] = r.PredictedTemp
		case r.PredictedTemp != nil:
			out[i] = r.PredictedTemp
		case rows[i-1].PredictedTemp != nil || rows[i+1].PredictedTemp != nil:
			out[i] = r.Temp1
		}
	}
	return out
}
