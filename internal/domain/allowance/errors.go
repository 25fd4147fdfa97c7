package allowance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvalidTripSpanError is returned when a trip has a missing date or ends before it starts
type InvalidTripSpanError struct {
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

func (e *InvalidTripSpanError) Error() string {
	return fmt.Sprintf("invalid trip span %s..%s: %s",
		e.StartDate.Format(time.DateOnly), e.EndDate.Format(time.DateOnly), e.Reason)
}

// InvalidDistanceError is returned for a zero or negative mileage distance
type InvalidDistanceError struct {
	DistanceKm decimal.Decimal
}

func (e *InvalidDistanceError) Error() string {
	return fmt.Sprintf("invalid distance %s km: must be greater than zero", e.DistanceKm)
}

// UnknownVehicleTypeError is returned for a vehicle outside the supported set
type UnknownVehicleTypeError struct {
	VehicleType string
}

func (e *UnknownVehicleTypeError) Error() string {
	return fmt.Sprintf("unknown vehicle type %q", e.VehicleType)
}
