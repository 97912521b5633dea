package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleettemp/metrics"
	"fleettemp/pipeline"
)

var exportHeader = []string{
	"vehicle_id", "vehicle_plate", "timestamp", "driver", "longitude", "location",
	"terminal_serial", "out_speed", "odometer", "door1_status", "door2_status",
	"ignition", "temp1", "temp2", "temp3", "temp4", "day_of_week", "hour",
	"interval_seconds", "is_synthetic", "predicted_temp", "predicted_temp2",
}

// Export streams the selected rows as CSV. The selection travels with the
// request, so concurrent exports never see each other's filters.
func (h *TelemetryHandler) Export(c *gin.Context) {
	sel, rows, ok := h.load(c)
	if !ok {
		return
	}

	name := sel.VehiclePlate
	if !sel.Start.IsZero() {
		name += "_" + sel.Start.Format("20060102")
	}
	if !sel.End.IsZero() {
		name += "_" + sel.End.Format("20060102")
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, name))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, r := range rows {
		if err := w.Write(csvRow(r)); err != nil {
			h.log.Warn("export aborted", "plate", sel.VehiclePlate, "error", err)
			return
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.log.Warn("export flush failed", "plate", sel.VehiclePlate, "error", err)
		return
	}
	metrics.Exports.Inc()
}

func csvRow(r pipeline.Record) []string {
	return []string{
		r.VehicleID, r.VehiclePlate, r.Timestamp.Format(time.DateTime),
		optString(r.Driver), optFloat(r.Longitude), optString(r.Location),
		optString(r.TerminalSerial), optFloat(r.OutSpeed), optFloat(r.Odometer),
		optString(r.Door1Status), optString(r.Door2Status), optBool(r.Ignition),
		optFloat(r.Temp1), optFloat(r.Temp2), optFloat(r.Temp3), optFloat(r.Temp4),
		r.DayOfWeek, optInt(r.Hour), optInt64(r.IntervalSeconds),
		strconv.FormatBool(r.IsSynthetic), optFloat(r.PredictedTemp), optFloat(r.PredictedTemp2),
	}
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
