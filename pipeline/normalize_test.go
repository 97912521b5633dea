package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) []RawRecord {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var out []RawRecord
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestNormalize_RenamesAndDerives(t *testing.T) {
	raw := decode(t, `[
		{"out_vehicle_id": 17, "out_registration": "1234-ABC", "out_event_ts": "2024-03-04T10:05:00+01:00",
		 "out_driver": "Ana", "out_longitude": "-3.7", "out_event_description": "Madrid",
		 "out_terminal_serial": "T-9", "out_speed": 42.5, "ignition": "t", "temp1": 4.2, "temp2": null,
		 "door1_status": 0, "door2_status": "closed", "out_event_odo": 1200}
	]`)

	rows, report := Normalize(raw)
	require.NoError(t, report.Err())
	require.Len(t, rows, 1)
	r := rows[0]

	assert.Equal(t, "17", r.VehicleID)
	assert.Equal(t, "1234-ABC", r.VehiclePlate)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC), r.Timestamp)
	assert.Equal(t, "Ana", *r.Driver)
	assert.InDelta(t, -3.7, *r.Longitude, 1e-9)
	assert.Equal(t, "Madrid", *r.Location)
	assert.Equal(t, "T-9", *r.TerminalSerial)
	assert.InDelta(t, 1200, *r.Odometer, 1e-9)
	assert.Equal(t, "0", *r.Door1Status)
	assert.Equal(t, "closed", *r.Door2Status)
	require.NotNil(t, r.Ignition)
	assert.True(t, *r.Ignition)
	assert.Nil(t, r.Temp2)
	assert.Equal(t, "Monday", r.DayOfWeek)
	assert.Equal(t, 10, *r.Hour)
	assert.Nil(t, r.IntervalSeconds)
	assert.False(t, r.IsSynthetic)
}

func TestNormalize_DedupKeepsLastAndSorts(t *testing.T) {
	raw := decode(t, `[
		{"out_registration": "P1", "out_event_ts": "2024-03-04 08:10:00", "temp1": 1},
		{"out_registration": "P1", "out_event_ts": "2024-03-04 08:00:00", "temp1": 2},
		{"out_registration": "P1", "out_event_ts": "2024-03-04 08:10:00", "temp1": 3}
	]`)

	rows, report := Normalize(raw)
	require.NoError(t, report.Err())
	require.Len(t, rows, 2)
	assert.Equal(t, 1, report.Duplicates)

	assert.Equal(t, at(0), rows[0].Timestamp)
	assert.Equal(t, at(10), rows[1].Timestamp)
	assert.InDelta(t, 3, *rows[1].Temp1, 1e-9, "later entry for the same instant wins")
	require.NotNil(t, rows[1].IntervalSeconds)
	assert.Equal(t, int64(600), *rows[1].IntervalSeconds)
}

func TestNormalize_SkipsBadRecords(t *testing.T) {
	raw := decode(t, `[
		{"out_event_ts": "2024-03-04 08:00:00"},
		{"out_registration": "P1"},
		{"out_registration": "P1", "out_event_ts": "yesterday-ish"},
		{"out_registration": "P1", "out_event_ts": "2024-03-04 08:00:00", "temp1": "warm"},
		{"out_registration": "P1", "out_event_ts": "2024-03-04 08:05:00", "temp1": "4.5"}
	]`)

	rows, report := Normalize(raw)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, report.Received)
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 4, report.Skipped)
	require.Len(t, report.Errors, 4)

	var schemaErr *SchemaError
	require.ErrorAs(t, report.Errors[0], &schemaErr)
	assert.Equal(t, "vehicle_plate", schemaErr.Field)
	require.ErrorAs(t, report.Errors[1], &schemaErr)
	assert.Equal(t, "timestamp", schemaErr.Field)

	var parseErr *ParseError
	require.ErrorAs(t, report.Errors[2], &parseErr)
	assert.Equal(t, "timestamp", parseErr.Field)
	require.ErrorAs(t, report.Errors[3], &parseErr)
	assert.Equal(t, "temp1", parseErr.Field)

	assert.Error(t, report.Err())
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 4, 10, 5, 7, 0, time.UTC)
	tests := []struct {
		name string
		in   any
	}{
		{"rfc3339 utc", "2024-03-04T10:05:07Z"},
		{"rfc3339 offset keeps wall clock", "2024-03-04T10:05:07+02:00"},
		{"fractional seconds truncated", "2024-03-04T10:05:07.987Z"},
		{"space separated", "2024-03-04 10:05:07"},
		{"space separated with offset", "2024-03-04 10:05:07+00:00"},
		{"epoch seconds", json.Number("1709546707")},
		{"epoch millis", json.Number("1709546707000")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseTimestamp("not a time")
	assert.Error(t, err)
	_, err = ParseTimestamp(true)
	assert.Error(t, err)
}

func TestParseIgnition(t *testing.T) {
	tests := []struct {
		in   any
		want *bool
	}{
		{"t", boolPtr(true)},
		{"f", boolPtr(false)},
		{"TRUE", boolPtr(true)},
		{json.Number("0"), boolPtr(false)},
		{true, boolPtr(true)},
		{"maybe", nil},
		{nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseIgnition(tt.in), "input %v", tt.in)
	}
}

func TestSchemaErrorMatching(t *testing.T) {
	var err error = &SchemaError{Index: 2, Field: "timestamp"}
	var target *SchemaError
	assert.True(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "record 2")
}

func boolPtr(b bool) *bool { return &b }
