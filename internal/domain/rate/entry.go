package rate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRate is returned when an entry carries a negative rate, no currency or an
	// inverted effective range
	ErrInvalidRate = errors.New("invalid rate entry")

	// ErrOverlappingRange is returned when two entries for the same key cover the same day
	ErrOverlappingRange = errors.New("overlapping effective date ranges")
)

// Entry is one row of the allowance table. Per-diem rows leave VehicleType empty and
// RatePerKm zero; mileage rows set VehicleType and RatePerKm.
type Entry struct {
	CountryCode       string          `json:"country_code"`
	City              string          `json:"city,omitempty"`
	VehicleType       string          `json:"vehicle_type,omitempty"`
	FullDayRate       decimal.Decimal `json:"full_day_rate"`
	HalfDayRate       decimal.Decimal `json:"half_day_rate"`
	AccommodationRate decimal.Decimal `json:"accommodation_rate"`
	IncidentalRate    decimal.Decimal `json:"incidental_rate"`
	RatePerKm         decimal.Decimal `json:"rate_per_km"`
	Currency          string          `json:"currency"`
	EffectiveFrom     time.Time       `json:"effective_from"`
	EffectiveTo       *time.Time      `json:"effective_to,omitempty"`
}

// NotFoundError reports that no entry covers the requested key and day, neither for the
// city nor for the country default
type NotFoundError struct {
	CountryCode string
	City        string
	VehicleType string
	Date        time.Time
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no rate for country %s", e.CountryCode)
	if e.City != "" {
		fmt.Fprintf(&b, ", city %s", e.City)
	}
	if e.VehicleType != "" {
		fmt.Fprintf(&b, ", vehicle %s", e.VehicleType)
	}
	fmt.Fprintf(&b, " on %s", e.Date.Format(time.DateOnly))
	return b.String()
}

// Covers reports whether the entry is effective on the given calendar day
func (e Entry) Covers(day time.Time) bool {
	day = Day(day)
	if day.Before(Day(e.EffectiveFrom)) {
		return false
	}
	if e.EffectiveTo != nil && day.After(Day(*e.EffectiveTo)) {
		return false
	}
	return true
}

// Validate checks the entry in isolation
func (e Entry) Validate() error {
	if e.CountryCode == "" {
		return fmt.Errorf("%w: country code is required", ErrInvalidRate)
	}
	if e.Currency == "" {
		return fmt.Errorf("%w: %s has no currency", ErrInvalidRate, e.CountryCode)
	}
	if e.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: %s has no effective_from", ErrInvalidRate, e.CountryCode)
	}
	if e.EffectiveTo != nil && Day(*e.EffectiveTo).Before(Day(e.EffectiveFrom)) {
		return fmt.Errorf("%w: %s effective_to precedes effective_from", ErrInvalidRate, e.CountryCode)
	}

	rates := map[string]decimal.Decimal{
		"full_day_rate":      e.FullDayRate,
		"half_day_rate":      e.HalfDayRate,
		"accommodation_rate": e.AccommodationRate,
		"incidental_rate":    e.IncidentalRate,
		"rate_per_km":        e.RatePerKm,
	}
	for name, v := range rates {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s %s is negative", ErrInvalidRate, e.CountryCode, name)
		}
	}
	return nil
}

// Day truncates t to its calendar day. The wall-clock date in t's own location is kept;
// time of day and zone are dropped.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
