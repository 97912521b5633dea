package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/relvacode/iso8601"

	"fleettemp/store"
)

var errBadRange = errors.New("start is after end")

// parseSelection reads the (plate, start, end) triple of a request. Both
// bounds are optional and inclusive; a date-only end covers its whole day.
func parseSelection(c *gin.Context) (store.Selection, error) {
	sel := store.Selection{VehiclePlate: c.Param("plate")}
	if sel.VehiclePlate == "" {
		return sel, errors.New("vehicle plate is required")
	}

	if v := c.Query("start"); v != "" {
		t, err := parseBound(v)
		if err != nil {
			return sel, fmt.Errorf("invalid start: %w", err)
		}
		sel.Start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := parseBound(v)
		if err != nil {
			return sel, fmt.Errorf("invalid end: %w", err)
		}
		if len(v) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Second)
		}
		sel.End = t
	}
	if !sel.Start.IsZero() && !sel.End.IsZero() && sel.Start.After(sel.End) {
		return sel, errBadRange
	}
	return sel, nil
}

func parseBound(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateTime, v); err == nil {
		return t, nil
	}
	t, err := iso8601.ParseString(v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(time.Second), nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
