package allowance

import (
	"errors"
	"testing"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mileageTable(t *testing.T) *rate.Table {
	t.Helper()

	table, err := rate.NewTable([]rate.Entry{
		{CountryCode: "DE", VehicleType: "car", RatePerKm: dec("0.30"), Currency: "EUR", EffectiveFrom: day("2020-01-01")},
		{CountryCode: "DE", VehicleType: "motorcycle", RatePerKm: dec("0.20"), Currency: "EUR", EffectiveFrom: day("2020-01-01")},
		{CountryCode: "CH", VehicleType: "car", RatePerKm: dec("0.70"), Currency: "CHF", EffectiveFrom: day("2020-01-01")},
		{CountryCode: "DE", FullDayRate: dec("28"), HalfDayRate: dec("14"), AccommodationRate: dec("150"), Currency: "EUR", EffectiveFrom: day("2024-01-01")},
		{CountryCode: "DE", City: "Berlin", FullDayRate: dec("30"), HalfDayRate: dec("15"), AccommodationRate: dec("170"), Currency: "EUR", EffectiveFrom: day("2024-01-01")},
	})
	require.NoError(t, err)
	return table
}

func TestComputeMileage_CarInGermany(t *testing.T) {
	calc := NewCalculator(mileageTable(t))

	got, err := calc.ComputeMileage(dec("150"), "DE", "car", day("2024-06-01"))
	require.NoError(t, err)

	assert.Equal(t, "45.00", got.TotalAmount.StringFixed(2))
	assert.True(t, got.RatePerKm.Equal(dec("0.30")))
	assert.Equal(t, VehicleCar, got.VehicleType)
	assert.Equal(t, "EUR", got.Currency)
}

func TestComputeMileage_IsLinearInDistance(t *testing.T) {
	calc := NewCalculator(mileageTable(t))
	distances := []string{"1", "12.3", "150", "0.5", "999.99", "33.33"}

	for _, km := range distances {
		single, err := calc.ComputeMileage(dec(km), "DE", "motorcycle", day("2024-06-01"))
		require.NoError(t, err)
		double, err := calc.ComputeMileage(dec(km).Mul(decimal.NewFromInt(2)), "DE", "motorcycle", day("2024-06-01"))
		require.NoError(t, err)

		diff := double.TotalAmount.Sub(single.TotalAmount.Mul(decimal.NewFromInt(2))).Abs()
		assert.True(t, diff.LessThanOrEqual(dec("0.01")), "%s km: %s vs 2x%s", km, double.TotalAmount, single.TotalAmount)
	}
}

func TestComputeMileage_Errors(t *testing.T) {
	calc := NewCalculator(mileageTable(t))

	t.Run("zero distance", func(t *testing.T) {
		_, err := calc.ComputeMileage(decimal.Zero, "DE", "car", day("2024-06-01"))
		var distErr *InvalidDistanceError
		assert.True(t, errors.As(err, &distErr))
	})

	t.Run("negative distance", func(t *testing.T) {
		_, err := calc.ComputeMileage(dec("-5"), "DE", "car", day("2024-06-01"))
		var distErr *InvalidDistanceError
		assert.True(t, errors.As(err, &distErr))
	})

	t.Run("unknown vehicle does not default to car", func(t *testing.T) {
		_, err := calc.ComputeMileage(dec("10"), "DE", "truck", day("2024-06-01"))
		var vErr *UnknownVehicleTypeError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "truck", vErr.VehicleType)
	})

	t.Run("no bicycle row", func(t *testing.T) {
		_, err := calc.ComputeMileage(dec("10"), "DE", "bicycle", day("2024-06-01"))
		var nf *rate.NotFoundError
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("missing date", func(t *testing.T) {
		_, err := calc.ComputeMileage(dec("10"), "DE", "car", time.Time{})
		assert.ErrorIs(t, err, rate.ErrInvalidRate)
	})
}

func TestQuotePerDiem_UsesCityRate(t *testing.T) {
	calc := NewCalculator(mileageTable(t))
	trip := TripSpan{StartDate: day("2024-03-04"), EndDate: day("2024-03-06")}

	berlin, err := calc.QuotePerDiem(trip, "DE", "Berlin", MealDeductions{}, false)
	require.NoError(t, err)
	assert.Equal(t, "570.00", berlin.TotalAmount.StringFixed(2))

	munich, err := calc.QuotePerDiem(trip, "DE", "München", MealDeductions{}, false)
	require.NoError(t, err)
	assert.Equal(t, "506.00", munich.TotalAmount.StringFixed(2))

	_, err = calc.QuotePerDiem(trip, "FR", "", MealDeductions{}, false)
	var nf *rate.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestParseVehicleType(t *testing.T) {
	v, err := ParseVehicleType(" Bicycle ")
	require.NoError(t, err)
	assert.Equal(t, VehicleBicycle, v)

	_, err = ParseVehicleType("")
	var vErr *UnknownVehicleTypeError
	assert.True(t, errors.As(err, &vErr))
}
