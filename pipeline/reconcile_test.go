package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_ResolutionOrder(t *testing.T) {
	fresh := synthetic("P1", 0)
	kept := synthetic("P1", 5)
	kept.PredictedTemp = f64(6.5)
	empty := synthetic("P1", 10)
	reading := measured("P1", 15, 4)

	res := Reconcile(
		[]Record{fresh, kept, empty, reading},
		[]PredictionRecord{
			{VehiclePlate: "P1", Timestamp: at(0), PredictedTemp: f64(3.14159)},
			{VehiclePlate: "P1", Timestamp: at(5), PredictedTemp: nil},
			{VehiclePlate: "P1", Timestamp: at(15), PredictedTemp: f64(99)},
		},
	)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, at(0), res.Updated[0].Timestamp)
	assert.InDelta(t, 3.1, *res.Updated[0].PredictedTemp, 1e-9)
	assert.Nil(t, res.Updated[0].Temp1)
	assert.Equal(t, 1, res.Unmatched, "measured rows take no forecast")
	assert.Empty(t, res.Unknown)
}

func TestReconcile_NeverRegresses(t *testing.T) {
	row := synthetic("P1", 0)
	row.PredictedTemp = f64(5)
	row.PredictedTemp2 = f64(2)

	res := Reconcile([]Record{row}, []PredictionRecord{
		{VehiclePlate: "P1", Timestamp: at(0)},
	})
	assert.Empty(t, res.Updated)

	res = Reconcile([]Record{row}, []PredictionRecord{
		{VehiclePlate: "P1", Timestamp: at(0), PredictedTemp2: f64(2.26)},
	})
	require.Len(t, res.Updated, 1)
	assert.InDelta(t, 5, *res.Updated[0].PredictedTemp, 1e-9)
	assert.InDelta(t, 2.3, *res.Updated[0].PredictedTemp2, 1e-9)
}

func TestReconcile_UnknownVehicleDropped(t *testing.T) {
	res := Reconcile([]Record{synthetic("P1", 0)}, []PredictionRecord{
		{VehiclePlate: "GHOST", Timestamp: at(0), PredictedTemp: f64(1)},
		{VehiclePlate: "P1", Timestamp: at(0), PredictedTemp: f64(2)},
	})
	require.Len(t, res.Unknown, 1)
	assert.Equal(t, "GHOST", res.Unknown[0].VehiclePlate)
	require.Len(t, res.Updated, 1)
	assert.InDelta(t, 2, *res.Updated[0].PredictedTemp, 1e-9)
}

func TestReconcile_OtherStoredVehicleIsUnmatched(t *testing.T) {
	res := Reconcile([]Record{synthetic("P1", 0)}, []PredictionRecord{
		{VehiclePlate: "P2", Timestamp: at(0), PredictedTemp: f64(1)},
		{VehiclePlate: "GHOST", Timestamp: at(0), PredictedTemp: f64(1)},
	}, "P1", "P2")
	require.Len(t, res.Unknown, 1)
	assert.Equal(t, "GHOST", res.Unknown[0].VehiclePlate)
	assert.Equal(t, 1, res.Unmatched)
	assert.Empty(t, res.Updated)
}

func TestReconcile_MatchesOnWallClockSecond(t *testing.T) {
	res := Reconcile([]Record{synthetic("P1", 0)}, []PredictionRecord{
		{VehiclePlate: "P1", Timestamp: at(0).Add(400_000_000), PredictedTemp: f64(2)},
	})
	require.Len(t, res.Updated, 1)
}

func TestUnmeasuredTimestamps(t *testing.T) {
	rows := []Record{measured("P1", 0, 1), synthetic("P1", 5), measured("P1", 10, 1)}
	assert.Equal(t, timestamps(rows[1:2]), UnmeasuredTimestamps(rows))
}
