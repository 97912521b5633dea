package pipeline

// Merge folds batch into canonical keyed by (vehicle_plate, timestamp) and
// returns the new canonical rows sorted by (plate, timestamp) with intervals
// recomputed per vehicle. Neither input is modified.
//
// For a key present on both sides the batch value wins for every field it
// carries, and the canonical value is kept where the batch is nil. A row is
// synthetic only when both sides are synthetic, so a placeholder never demotes
// a real reading. Rows sharing a key but naming different vehicle ids fail the
// whole merge with *MergeConflictError.
func Merge(canonical, batch []Record) ([]Record, error) {
	index := make(map[Key]int, len(canonical)+len(batch))
	out := make([]Record, 0, len(canonical)+len(batch))

	for _, r := range canonical {
		if at, ok := index[r.Key()]; ok {
			merged, err := overlay(out[at], r)
			if err != nil {
				return nil, err
			}
			out[at] = merged
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}
	for _, r := range batch {
		if at, ok := index[r.Key()]; ok {
			merged, err := overlay(out[at], r)
			if err != nil {
				return nil, err
			}
			out[at] = merged
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}

	SortRecords(out)
	RecomputeIntervals(out)
	return out, nil
}

func overlay(base, in Record) (Record, error) {
	if base.VehicleID != "" && in.VehicleID != "" && base.VehicleID != in.VehicleID {
		return Record{}, &MergeConflictError{
			VehiclePlate: in.VehiclePlate,
			Timestamp:    in.Timestamp,
			Existing:     base.VehicleID,
			Incoming:     in.VehicleID,
		}
	}

	out := base
	if in.VehicleID != "" {
		out.VehicleID = in.VehicleID
	}
	if in.DayOfWeek != "" {
		out.DayOfWeek = in.DayOfWeek
	}
	pick(&out.Driver, in.Driver)
	pick(&out.Longitude, in.Longitude)
	pick(&out.Location, in.Location)
	pick(&out.TerminalSerial, in.TerminalSerial)
	pick(&out.OutSpeed, in.OutSpeed)
	pick(&out.Odometer, in.Odometer)
	pick(&out.Door1Status, in.Door1Status)
	pick(&out.Door2Status, in.Door2Status)
	pick(&out.Ignition, in.Ignition)
	pick(&out.Temp1, in.Temp1)
	pick(&out.Temp2, in.Temp2)
	pick(&out.Temp3, in.Temp3)
	pick(&out.Temp4, in.Temp4)
	pick(&out.Hour, in.Hour)
	pick(&out.PredictedTemp, in.PredictedTemp)
	pick(&out.PredictedTemp2, in.PredictedTemp2)
	out.IsSynthetic = base.IsSynthetic && in.IsSynthetic
	return out, nil
}

func pick[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}
