package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/ratesource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ratesYAML = `
rates:
  - country_code: DE
    full_day_rate: 28
    half_day_rate: 14
    accommodation_rate: 150
    incidental_rate: 0
    currency: EUR
    effective_from: "2024-01-01"
  - country_code: DE
    city: Berlin
    full_day_rate: 30
    half_day_rate: 15
    accommodation_rate: 170
    currency: EUR
    effective_from: "2024-01-01"
  - country_code: DE
    vehicle_type: car
    rate_per_km: "0.30"
    currency: EUR
    effective_from: "2020-01-01"
`

func writeRates(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ratesYAML), 0644))
	return path
}

func TestRun_ValidatesAndLooksUp(t *testing.T) {
	var out bytes.Buffer

	err := run(options{file: writeRates(t), country: "de", city: "Berlin", date: "2024-06-01"}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "3 entries OK")
	assert.Contains(t, out.String(), `"city": "Berlin"`)
	assert.Contains(t, out.String(), `"full_day_rate": "30"`)
}

func TestRun_PricesMileageAndPerDiem(t *testing.T) {
	path := writeRates(t)

	var out bytes.Buffer
	require.NoError(t, run(options{file: path, country: "DE", vehicle: "car", km: "120", date: "2024-06-01"}, &out))
	assert.Contains(t, out.String(), `"total_amount": "36"`)

	out.Reset()
	require.NoError(t, run(options{file: path, country: "DE", date: "2024-06-01", endDate: "2024-06-02"}, &out))
	// two half days of 14 plus two nights of 150
	assert.Contains(t, out.String(), `"total_amount": "328"`)
}

func TestRun_ExportRoundTrips(t *testing.T) {
	path := writeRates(t)
	export := filepath.Join(t.TempDir(), "rates.xlsx")

	var out bytes.Buffer
	require.NoError(t, run(options{file: path, sheet: "rates", export: export}, &out))

	entries, err := ratesource.LoadXLSX(export, "rates")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRun_Errors(t *testing.T) {
	path := writeRates(t)

	assert.Error(t, run(options{}, &bytes.Buffer{}))
	assert.Error(t, run(options{file: path, country: "DE", date: "01/06/2024"}, &bytes.Buffer{}))

	err := run(options{file: path, country: "FR", date: "2024-06-01"}, &bytes.Buffer{})
	var notFound *rate.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}
