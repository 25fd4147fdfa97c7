package allowance

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/currency"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/shopspring/decimal"
)

// RateLookup is the read-only rate source the calculators depend on. *rate.Table
// implements it.
type RateLookup interface {
	Lookup(countryCode, city, vehicleType string, onDate time.Time) (rate.Entry, error)
}

// MileageResult is the outcome of a mileage computation
type MileageResult struct {
	DistanceKm  decimal.Decimal `json:"distance_km"`
	VehicleType VehicleType     `json:"vehicle_type"`
	RatePerKm   decimal.Decimal `json:"rate_per_km"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

// Calculator prices trips against an injected rate source
type Calculator struct {
	rates RateLookup
}

// NewCalculator creates a calculator bound to a rate source
func NewCalculator(rates RateLookup) *Calculator {
	return &Calculator{rates: rates}
}

// ComputeMileage returns round2(distanceKm * ratePerKm) for the vehicle's country row.
// Mileage rows are country-wide; no city override applies.
func (c *Calculator) ComputeMileage(distanceKm decimal.Decimal, countryCode, vehicleType string, onDate time.Time) (*MileageResult, error) {
	if !distanceKm.IsPositive() {
		return nil, &InvalidDistanceError{DistanceKm: distanceKm}
	}
	vehicle, err := ParseVehicleType(vehicleType)
	if err != nil {
		return nil, err
	}
	if onDate.IsZero() {
		return nil, fmt.Errorf("%w: mileage date is required", rate.ErrInvalidRate)
	}

	entry, err := c.rates.Lookup(countryCode, "", vehicle.String(), onDate)
	if err != nil {
		return nil, err
	}
	if !entry.RatePerKm.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s has no rate per km", rate.ErrInvalidRate,
			strings.ToUpper(countryCode), vehicle)
	}

	return &MileageResult{
		DistanceKm:  distanceKm,
		VehicleType: vehicle,
		RatePerKm:   entry.RatePerKm,
		TotalAmount: currency.Round2(distanceKm.Mul(entry.RatePerKm)),
		Currency:    entry.Currency,
	}, nil
}

// QuotePerDiem looks up the per-diem row effective on the trip's first day and prices the
// trip with it
func (c *Calculator) QuotePerDiem(trip TripSpan, countryCode, city string, deductions MealDeductions, accommodationProvided bool) (*PerDiemResult, error) {
	if _, err := trip.Days(); err != nil {
		return nil, err
	}

	entry, err := c.rates.Lookup(countryCode, city, "", trip.StartDate)
	if err != nil {
		return nil, err
	}

	return ComputePerDiem(trip, entry, deductions, accommodationProvided)
}
