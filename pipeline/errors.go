package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyDataset is matched by every *EmptyDatasetError.
var ErrEmptyDataset = errors.New("no data")

// SchemaError reports a raw record missing a field required for keying.
type SchemaError struct {
	Index int
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("record %d: missing required field %q", e.Index, e.Field)
}

// ParseError reports a raw field value that could not be interpreted.
type ParseError struct {
	Index int
	Field string
	Value any
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %d: cannot parse %s=%v: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MergeConflictError reports two rows sharing (vehicle_plate, timestamp) but
// naming different vehicle ids.
type MergeConflictError struct {
	VehiclePlate string
	Timestamp    time.Time
	Existing     string
	Incoming     string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("plate %s at %s: vehicle id %q conflicts with stored %q",
		e.VehiclePlate, e.Timestamp.Format(time.DateTime), e.Incoming, e.Existing)
}

// UnknownVehicleError reports a prediction for a plate with no canonical rows.
type UnknownVehicleError struct {
	VehiclePlate string
	Timestamp    time.Time
}

func (e *UnknownVehicleError) Error() string {
	return fmt.Sprintf("prediction for unknown vehicle %s at %s",
		e.VehiclePlate, e.Timestamp.Format(time.DateTime))
}

// EmptyDatasetError reports a query with nothing to return. Callers render it
// as an explicit "no data" result.
type EmptyDatasetError struct {
	VehiclePlate string
	What         string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("%s: no %s", e.VehiclePlate, e.What)
}

func (e *EmptyDatasetError) Is(target error) bool { return target == ErrEmptyDataset }
