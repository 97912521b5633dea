package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// RawRecord is one flat key-value record of an ingested batch, as decoded from
// JSON with UseNumber.
type RawRecord map[string]any

// fieldAliases maps source field names onto the canonical schema.
var fieldAliases = map[string]string{
	"out_vehicle_id":        "vehicle_id",
	"out_registration":      "vehicle_plate",
	"out_event_ts":          "timestamp",
	"out_driver":            "driver",
	"out_longitude":         "longitude",
	"out_event_description": "location",
	"out_terminal_serial":   "terminal_serial",
	"out_event_odo":         "odometer",
	"date":                  "timestamp",
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// NormalizeReport summarizes one RecordNormalizer run.
type NormalizeReport struct {
	Received   int
	Accepted   int
	Duplicates int
	Skipped    int
	Errors     []error
}

// Err joins the per-record errors, or returns nil when every record was kept.
func (r NormalizeReport) Err() error {
	return errors.Join(r.Errors...)
}

// Normalize turns one raw batch into typed records sorted by (plate,
// timestamp), deduplicated on (plate, timestamp) with the last occurrence
// winning, and with calendar fields and intervals derived. Records that fail
// validation are skipped and reported; they never fail the batch.
func Normalize(raw []RawRecord) ([]Record, NormalizeReport) {
	report := NormalizeReport{Received: len(raw)}

	index := make(map[Key]int, len(raw))
	out := make([]Record, 0, len(raw))
	for i, rr := range raw {
		rec, err := normalizeOne(i, canonicalFields(rr))
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, err)
			continue
		}
		if at, ok := index[rec.Key()]; ok {
			out[at] = rec
			report.Duplicates++
			continue
		}
		index[rec.Key()] = len(out)
		out = append(out, rec)
	}

	SortRecords(out)
	RecomputeIntervals(out)
	report.Accepted = len(out)
	return out, report
}

func canonicalFields(rr RawRecord) map[string]any {
	out := make(map[string]any, len(rr))
	// Canonical names take precedence over aliases when both are present.
	for k, v := range rr {
		if alias, ok := fieldAliases[k]; ok {
			if _, exists := rr[alias]; exists {
				continue
			}
			k = alias
		}
		out[k] = v
	}
	return out
}

func normalizeOne(i int, f map[string]any) (Record, error) {
	var rec Record

	plate := scalarString(f["vehicle_plate"])
	if plate == nil || *plate == "" {
		return rec, &SchemaError{Index: i, Field: "vehicle_plate"}
	}
	rawTS, ok := f["timestamp"]
	if !ok || rawTS == nil {
		return rec, &SchemaError{Index: i, Field: "timestamp"}
	}
	ts, err := ParseTimestamp(rawTS)
	if err != nil {
		return rec, &ParseError{Index: i, Field: "timestamp", Value: rawTS, Err: err}
	}

	rec.VehiclePlate = *plate
	rec.Timestamp = ts
	if id := scalarString(f["vehicle_id"]); id != nil {
		rec.VehicleID = *id
	}
	rec.Driver = scalarString(f["driver"])
	rec.Location = scalarString(f["location"])
	rec.TerminalSerial = scalarString(f["terminal_serial"])
	rec.Door1Status = scalarString(f["door1_status"])
	rec.Door2Status = scalarString(f["door2_status"])
	rec.Ignition = parseIgnition(f["ignition"])

	floats := []struct {
		field string
		dst   **float64
	}{
		{"longitude", &rec.Longitude},
		{"out_speed", &rec.OutSpeed},
		{"odometer", &rec.Odometer},
		{"temp1", &rec.Temp1},
		{"temp2", &rec.Temp2},
		{"temp3", &rec.Temp3},
		{"temp4", &rec.Temp4},
	}
	for _, fl := range floats {
		v, err := parseFloat(f[fl.field])
		if err != nil {
			return rec, &ParseError{Index: i, Field: fl.field, Value: f[fl.field], Err: err}
		}
		*fl.dst = v
	}

	deriveCalendar(&rec)
	return rec, nil
}

// ParseTimestamp converts a raw timestamp into a second-precision wall-clock
// instant. Any zone offset is dropped, keeping the local reading of the clock.
// Numbers are unix epochs in seconds, or milliseconds when large enough.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return parseTimestampString(strings.TrimSpace(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return fromEpoch(f), nil
	case float64:
		return fromEpoch(t), nil
	case int64:
		return fromEpoch(float64(t)), nil
	case int:
		return fromEpoch(float64(t)), nil
	case time.Time:
		return wallClock(t), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := iso8601.ParseString(s); err == nil {
		return wallClock(t), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return wallClock(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func fromEpoch(f float64) time.Time {
	if math.Abs(f) >= 1e11 {
		return wallClock(time.UnixMilli(int64(f)).UTC())
	}
	return wallClock(time.Unix(int64(f), 0).UTC())
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func scalarString(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

func parseFloat(v any) (*float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil, err
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		f = parsed
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", v)
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return &f, nil
}

// parseIgnition maps the two-valued ignition token onto a boolean. Unknown
// tokens become nil.
func parseIgnition(v any) *bool {
	var on bool
	switch t := v.(type) {
	case bool:
		on = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "t", "true", "1", "on":
			on = true
		case "f", "false", "0", "off":
			on = false
		default:
			return nil
		}
	case json.Number:
		switch t.String() {
		case "1":
			on = true
		case "0":
			on = false
		default:
			return nil
		}
	case float64:
		switch t {
		case 1:
			on = true
		case 0:
			on = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &on
}
