package pipeline

import (
	"fmt"
	"math"
	"time"
)

// GapBlock is a maximal run of adjacent unmeasured synthetic rows.
type GapBlock struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Rows     int       `json:"rows"`
	Duration int64     `json:"duration_seconds"`
}

// GapReport aggregates the gap blocks of one vehicle.
type GapReport struct {
	VehiclePlate    string     `json:"vehicle_plate"`
	Blocks          []GapBlock `json:"blocks"`
	AverageDuration int64      `json:"average_duration_seconds"`
	TotalDuration   int64      `json:"total_duration_seconds"`
}

// FindGapBlocks groups the rows of one vehicle where temp1 is nil and the row
// is synthetic into runs of positional adjacency in timestamp order. It
// returns *EmptyDatasetError when there are no such rows.
func FindGapBlocks(plate string, rows []Record) (GapReport, error) {
	report := GapReport{VehiclePlate: plate, Blocks: []GapBlock{}}

	sorted := make([]Record, 0, len(rows))
	for _, r := range rows {
		if r.VehiclePlate == plate {
			sorted = append(sorted, r)
		}
	}
	SortRecords(sorted)

	var current *GapBlock
	for _, r := range sorted {
		if r.Temp1 != nil || !r.IsSynthetic {
			current = nil
			continue
		}
		if current == nil {
			report.Blocks = append(report.Blocks, GapBlock{Start: r.Timestamp})
			current = &report.Blocks[len(report.Blocks)-1]
		}
		current.End = r.Timestamp
		current.Rows++
	}

	if len(report.Blocks) == 0 {
		return report, &EmptyDatasetError{VehiclePlate: plate, What: "gap blocks"}
	}

	for i := range report.Blocks {
		b := &report.Blocks[i]
		b.Duration = int64(b.End.Sub(b.Start) / time.Second)
		report.TotalDuration += b.Duration
	}
	report.AverageDuration = int64(math.Round(float64(report.TotalDuration) / float64(len(report.Blocks))))
	return report, nil
}

// FormatAverage renders the average block duration as minutes and seconds.
func (g GapReport) FormatAverage() string {
	m, s := g.AverageDuration/60, g.AverageDuration%60
	return fmt.Sprintf("%dm:%ds", m, s)
}

// FormatTotal renders the total gap duration as hours and minutes.
func (g GapReport) FormatTotal() string {
	mins := g.TotalDuration / 60
	return fmt.Sprintf("%dh:%dm", mins/60, mins%60)
}
