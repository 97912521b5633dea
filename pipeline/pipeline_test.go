package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawBatch builds a raw batch of readings at the given minute offsets.
func rawBatch(plate string, minutes ...float64) []RawRecord {
	out := make([]RawRecord, 0, len(minutes))
	for i, m := range minutes {
		out = append(out, RawRecord{
			"out_vehicle_id":   "v-" + plate,
			"out_registration": plate,
			"out_event_ts":     at(m).Format("2006-01-02 15:04:05"),
			"ignition":         "t",
			"temp1":            fmt.Sprintf("%.1f", 3+float64(i)/10),
		})
	}
	return out
}

func ingest(t *testing.T, canonical []Record, raw []RawRecord) []Record {
	t.Helper()
	rows, report := Normalize(raw)
	require.NoError(t, report.Err())
	rows, err := Upsample(rows, limit, step)
	require.NoError(t, err)
	out, err := Merge(canonical, rows)
	require.NoError(t, err)
	return out
}

func TestPipeline_SingleLongGap(t *testing.T) {
	// Ten readings five minutes apart, except one 35 minute silence.
	raw := rawBatch("P1", 0, 5, 10, 15, 20, 55, 60, 65, 70, 75)

	canonical := ingest(t, nil, raw)
	require.Len(t, canonical, 13)
	assert.Equal(t, 3, CountSynthetic(canonical))

	for i := 1; i < len(canonical); i++ {
		require.True(t, canonical[i].Timestamp.After(canonical[i-1].Timestamp))
		require.NotNil(t, canonical[i].IntervalSeconds)
		want := int64(canonical[i].Timestamp.Sub(canonical[i-1].Timestamp) / time.Second)
		require.Equal(t, want, *canonical[i].IntervalSeconds)
	}
	for _, r := range canonical {
		if r.IsSynthetic {
			assert.Nil(t, r.Temp1)
		}
	}

	report, err := FindGapBlocks("P1", canonical)
	require.NoError(t, err)
	require.Len(t, report.Blocks, 1)
	assert.Equal(t, 3, report.Blocks[0].Rows)
}

// A gap g gets n = floor(g/step) placeholders, so 40 minutes at a 10 minute
// step yields 4, not 3.
func TestPipeline_FortyMinuteGap(t *testing.T) {
	raw := rawBatch("P1", 0, 5, 10, 15, 20, 60, 65, 70, 75, 80)
	canonical := ingest(t, nil, raw)
	assert.Equal(t, 4, CountSynthetic(canonical), "floor(40/10) placeholders")
	assert.Len(t, canonical, 14)
}

func TestPipeline_ReingestIsIdempotent(t *testing.T) {
	raw := rawBatch("P1", 0, 5, 10, 15, 20, 55, 60)
	once := ingest(t, nil, raw)
	twice := ingest(t, once, raw)
	assert.Equal(t, once, twice)
}

func TestPipeline_OverlappingBatches(t *testing.T) {
	first := ingest(t, nil, rawBatch("P1", 0, 5, 40))
	second := ingest(t, first, rawBatch("P1", 40, 45, 90))

	seen := make(map[Key]bool)
	for i, r := range second {
		require.False(t, seen[r.Key()])
		seen[r.Key()] = true
		if i > 0 {
			require.True(t, r.Timestamp.After(second[i-1].Timestamp))
		}
		if r.IsSynthetic {
			require.Nil(t, r.Temp1)
		}
	}
}

func TestPipeline_ForecastThenDisplay(t *testing.T) {
	canonical := ingest(t, nil, rawBatch("P1", 0, 5, 10, 45, 50))
	var preds []PredictionRecord
	for _, ts := range UnmeasuredTimestamps(canonical) {
		preds = append(preds, PredictionRecord{VehiclePlate: "P1", Timestamp: ts, PredictedTemp: f64(6.04)})
	}
	res := Reconcile(canonical, preds)
	require.Len(t, res.Updated, 3)

	byKey := make(map[Key]Record)
	for _, r := range res.Updated {
		byKey[r.Key()] = r
	}
	for i, r := range canonical {
		if u, ok := byKey[r.Key()]; ok {
			canonical[i] = u
		}
	}

	display := DisplaySeries(canonical)
	require.Len(t, display, len(canonical))
	assert.Nil(t, display[0])
	assert.InDelta(t, 3.2, *display[2], 1e-9, "seam before the predicted segment")
	assert.InDelta(t, 6.0, *display[3], 1e-9)
	assert.InDelta(t, 3.3, *display[6], 1e-9, "seam after the predicted segment")
}
