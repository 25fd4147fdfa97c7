package allowance

import (
	"fmt"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/shopspring/decimal"
)

var (
	breakfastShare = decimal.RequireFromString("0.20")
	lunchShare     = decimal.RequireFromString("0.40")
	dinnerShare    = decimal.RequireFromString("0.40")
	one            = decimal.NewFromInt(1)
	two            = decimal.NewFromInt(2)
)

// TripSpan is an inclusive range of calendar days. Time of day is ignored.
type TripSpan struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Days returns the number of calendar days covered, counting both ends
func (t TripSpan) Days() (int, error) {
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return 0, &InvalidTripSpanError{StartDate: t.StartDate, EndDate: t.EndDate, Reason: "start and end date are required"}
	}

	start, end := rate.Day(t.StartDate), rate.Day(t.EndDate)
	if end.Before(start) {
		return 0, &InvalidTripSpanError{StartDate: t.StartDate, EndDate: t.EndDate, Reason: "end date precedes start date"}
	}

	return int(end.Sub(start).Hours()/24) + 1, nil
}

// MealDeductions marks the meals provided to the traveller (hotel breakfast, client lunch,
// ...). Each provided meal removes its share of the meal component.
type MealDeductions struct {
	Breakfast bool `json:"breakfast"`
	Lunch     bool `json:"lunch"`
	Dinner    bool `json:"dinner"`
}

// Fraction returns the share of the meal component to withhold, never above 1
func (m MealDeductions) Fraction() decimal.Decimal {
	f := decimal.Zero
	if m.Breakfast {
		f = f.Add(breakfastShare)
	}
	if m.Lunch {
		f = f.Add(lunchShare)
	}
	if m.Dinner {
		f = f.Add(dinnerShare)
	}
	return decimal.Min(f, one)
}

// PerDiemBreakdown splits a per-diem total into its three components
type PerDiemBreakdown struct {
	Meals         decimal.Decimal `json:"meals"`
	Accommodation decimal.Decimal `json:"accommodation"`
	Incidentals   decimal.Decimal `json:"incidentals"`
}

// PerDiemResult is the outcome of a per-diem computation. Amounts are exact; rounding to
// cents happens once when the amount is turned into an expense record.
type PerDiemResult struct {
	TotalDays         int              `json:"total_days"`
	FullDays          int              `json:"full_days"`
	DeductionFraction decimal.Decimal  `json:"deduction_fraction"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	Currency          string           `json:"currency"`
	Breakdown         PerDiemBreakdown `json:"breakdown"`
}

// ComputePerDiem prices a trip against one rate entry.
//
// A single-day trip is paid the half-day rate. Longer trips pay the half-day rate for the
// departure and return days and the full-day rate for every day in between. Provided meals
// reduce the meal component only; accommodation is paid per day unless provided and
// incidentals are always paid per day.
func ComputePerDiem(trip TripSpan, r rate.Entry, deductions MealDeductions, accommodationProvided bool) (*PerDiemResult, error) {
	days, err := trip.Days()
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var baseMeals decimal.Decimal
	fullDays := 0
	if days == 1 {
		baseMeals = r.HalfDayRate
	} else {
		fullDays = days - 2
		baseMeals = two.Mul(r.HalfDayRate).Add(decimal.NewFromInt(int64(fullDays)).Mul(r.FullDayRate))
	}

	fraction := deductions.Fraction()
	meals := decimal.Max(baseMeals.Mul(one.Sub(fraction)), decimal.Zero)

	nDays := decimal.NewFromInt(int64(days))
	accommodation := decimal.Zero
	if !accommodationProvided {
		accommodation = r.AccommodationRate.Mul(nDays)
	}
	incidentals := r.IncidentalRate.Mul(nDays)

	total := meals.Add(accommodation).Add(incidentals)
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: negative per-diem total %s", rate.ErrInvalidRate, total)
	}

	return &PerDiemResult{
		TotalDays:         days,
		FullDays:          fullDays,
		DeductionFraction: fraction,
		TotalAmount:       total,
		Currency:          r.Currency,
		Breakdown: PerDiemBreakdown{
			Meals:         meals,
			Accommodation: accommodation,
			Incidentals:   incidentals,
		},
	}, nil
}
