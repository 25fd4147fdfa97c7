package ratesource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sampleYAML = `
rates:
  - country_code: DE
    full_day_rate: 28
    half_day_rate: 14
    accommodation_rate: "150.00"
    incidental_rate: 5
    currency: EUR
    effective_from: 2024-01-01
  - country_code: DE
    city: Munich
    full_day_rate: 32
    half_day_rate: 16
    accommodation_rate: 180
    incidental_rate: 5
    currency: EUR
    effective_from: 2024-01-01
    effective_to: 2024-12-31
  - country_code: DE
    vehicle_type: car
    rate_per_km: 0.30
    currency: EUR
    effective_from: 2024-01-01
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	entries, err := Load(writeFile(t, "rates.yaml", sampleYAML), "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	de := entries[0]
	assert.Equal(t, "DE", de.CountryCode)
	assert.True(t, de.FullDayRate.Equal(decimal.NewFromInt(28)))
	assert.True(t, de.AccommodationRate.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), de.EffectiveFrom)
	assert.Nil(t, de.EffectiveTo)

	munich := entries[1]
	assert.Equal(t, "Munich", munich.City)
	require.NotNil(t, munich.EffectiveTo)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *munich.EffectiveTo)

	car := entries[2]
	assert.Equal(t, "car", car.VehicleType)
	assert.True(t, car.RatePerKm.Equal(decimal.RequireFromString("0.3")))

	table, err := rate.NewTable(entries)
	require.NoError(t, err)
	e, err := table.Lookup("DE", "munich", "", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, e.FullDayRate.Equal(decimal.NewFromInt(32)))
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no rates", "other: 1\n"},
		{"bad amount", "rates:\n  - country_code: DE\n    full_day_rate: abc\n    currency: EUR\n    effective_from: 2024-01-01\n"},
		{"bad date", "rates:\n  - country_code: DE\n    currency: EUR\n    effective_from: 01.01.2024\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(writeFile(t, "rates.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("rates.csv", "")
	assert.Error(t, err)
}

func TestXLSX_RoundTrip(t *testing.T) {
	entries, err := LoadYAML(writeFile(t, "rates.yaml", sampleYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rates.xlsx")
	require.NoError(t, WriteXLSX(path, "", entries))

	got, err := Load(path, "rates")
	require.NoError(t, err)
	require.Len(t, got, len(entries))

	for i := range entries {
		assert.Equal(t, entries[i].CountryCode, got[i].CountryCode)
		assert.Equal(t, entries[i].City, got[i].City)
		assert.Equal(t, entries[i].VehicleType, got[i].VehicleType)
		assert.True(t, entries[i].FullDayRate.Equal(got[i].FullDayRate))
		assert.True(t, entries[i].RatePerKm.Equal(got[i].RatePerKm))
		assert.True(t, entries[i].EffectiveFrom.Equal(got[i].EffectiveFrom))
		if entries[i].EffectiveTo == nil {
			assert.Nil(t, got[i].EffectiveTo)
		} else {
			require.NotNil(t, got[i].EffectiveTo)
			assert.True(t, entries[i].EffectiveTo.Equal(*got[i].EffectiveTo))
		}
	}
}

func TestLoadXLSX_DateCellsAndColumnOrder(t *testing.T) {
	f := excelize.NewFile()
	header := []interface{}{"currency", "country_code", "effective_from", "full_day_rate", "half_day_rate"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	row := []interface{}{"CHF", "CH", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 64, 32}
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))
	empty := []interface{}{"", "", "", "", ""}
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &empty))

	path := filepath.Join(t.TempDir(), "rates.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := LoadXLSX(path, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CH", got[0].CountryCode)
	assert.Equal(t, "CHF", got[0].Currency)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), got[0].EffectiveFrom)
	assert.True(t, got[0].FullDayRate.Equal(decimal.NewFromInt(64)))
}

func TestLoadXLSX_MissingColumn(t *testing.T) {
	f := excelize.NewFile()
	header := []interface{}{"country_code", "full_day_rate"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	row := []interface{}{"DE", 28}
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))

	path := filepath.Join(t.TempDir(), "rates.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := LoadXLSX(path, "")
	assert.ErrorContains(t, err, "currency")
}

type fakeRateRepo struct {
	replaceAllFunc func(ctx context.Context, entries []rate.Entry) error
	stored         []rate.Entry
}

func (f *fakeRateRepo) ReplaceAll(ctx context.Context, entries []rate.Entry) error {
	if f.replaceAllFunc != nil {
		return f.replaceAllFunc(ctx, entries)
	}
	f.stored = entries
	return nil
}

func (f *fakeRateRepo) List(ctx context.Context) ([]rate.Entry, error) {
	return f.stored, nil
}

func TestImporter_Import(t *testing.T) {
	repo := &fakeRateRepo{}
	importer := NewImporter(repo, zap.NewNop())

	table, err := importer.Import(context.Background(), writeFile(t, "rates.yml", sampleYAML), "")
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Len(t, repo.stored, 3)
}

func TestImporter_RejectsInvalidTable(t *testing.T) {
	overlapping := `
rates:
  - country_code: DE
    full_day_rate: 28
    currency: EUR
    effective_from: 2024-01-01
  - country_code: DE
    full_day_rate: 30
    currency: EUR
    effective_from: 2024-06-01
`
	repo := &fakeRateRepo{replaceAllFunc: func(context.Context, []rate.Entry) error {
		t.Fatal("invalid table must not be stored")
		return nil
	}}

	_, err := NewImporter(repo, zap.NewNop()).Import(context.Background(), writeFile(t, "rates.yaml", overlapping), "")
	assert.True(t, errors.Is(err, rate.ErrOverlappingRange))
}

func TestImporter_StoreFailure(t *testing.T) {
	repo := &fakeRateRepo{replaceAllFunc: func(context.Context, []rate.Entry) error {
		return errors.New("disk full")
	}}

	_, err := NewImporter(repo, zap.NewNop()).Import(context.Background(), writeFile(t, "rates.yaml", sampleYAML), "")
	assert.ErrorContains(t, err, "disk full")
}
