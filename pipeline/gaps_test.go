package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindGapBlocks_GroupsByPosition(t *testing.T) {
	var rows []Record
	for i := 0; i < 12; i++ {
		m := float64(i * 5)
		switch i {
		case 3, 4, 5, 9, 10:
			rows = append(rows, synthetic("P1", m))
		default:
			rows = append(rows, measured("P1", m, 4))
		}
	}

	report, err := FindGapBlocks("P1", rows)
	require.NoError(t, err)
	require.Len(t, report.Blocks, 2)

	assert.Equal(t, 3, report.Blocks[0].Rows)
	assert.Equal(t, at(15), report.Blocks[0].Start)
	assert.Equal(t, at(25), report.Blocks[0].End)
	assert.Equal(t, int64(600), report.Blocks[0].Duration)

	assert.Equal(t, 2, report.Blocks[1].Rows)
	assert.Equal(t, int64(300), report.Blocks[1].Duration)

	assert.Equal(t, int64(900), report.TotalDuration)
	assert.Equal(t, int64(450), report.AverageDuration)
	assert.Equal(t, "7m:30s", report.FormatAverage())
	assert.Equal(t, "0h:15m", report.FormatTotal())
}

func TestFindGapBlocks_IgnoresRealRowsWithoutReading(t *testing.T) {
	missing := measured("P1", 5, 0)
	missing.Temp1 = nil
	rows := []Record{synthetic("P1", 0), missing, synthetic("P1", 10), measured("P2", 7, 1)}

	report, err := FindGapBlocks("P1", rows)
	require.NoError(t, err)
	require.Len(t, report.Blocks, 2)
	assert.Equal(t, int64(0), report.TotalDuration)
}

func TestFindGapBlocks_NoGapsIsReported(t *testing.T) {
	report, err := FindGapBlocks("P1", []Record{measured("P1", 0, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyDataset))
	var empty *EmptyDatasetError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "P1", empty.VehiclePlate)
	assert.Empty(t, report.Blocks)
	assert.NotNil(t, report.Blocks)
}

func TestFindGapBlocks_RoundsAverage(t *testing.T) {
	rows := []Record{
		synthetic("P1", 0), synthetic("P1", 0.25), measured("P1", 1, 1),
		synthetic("P1", 2), synthetic("P1", 2.5), measured("P1", 3, 1),
		synthetic("P1", 4), measured("P1", 5, 1),
	}
	report, err := FindGapBlocks("P1", rows)
	require.NoError(t, err)
	assert.Equal(t, int64(45), report.TotalDuration)
	assert.Equal(t, int64(15), report.AverageDuration)
}
