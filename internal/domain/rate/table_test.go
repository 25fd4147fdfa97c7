package rate

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func perDiem(country, city string, full int64, from string, to *time.Time) Entry {
	return Entry{
		CountryCode:   country,
		City:          city,
		FullDayRate:   decimal.NewFromInt(full),
		HalfDayRate:   decimal.NewFromInt(full / 2),
		Currency:      "EUR",
		EffectiveFrom: date(from),
		EffectiveTo:   to,
	}
}

func TestTable_LookupPrefersCityEntry(t *testing.T) {
	table, err := NewTable([]Entry{
		perDiem("DE", "", 28, "2024-01-01", nil),
		perDiem("DE", "München", 30, "2024-01-01", nil),
	})
	require.NoError(t, err)

	got, err := table.Lookup("DE", "münchen", "", date("2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, "München", got.City)
	assert.True(t, got.FullDayRate.Equal(decimal.NewFromInt(30)))
}

func TestTable_LookupFallsBackToCountryDefault(t *testing.T) {
	table, err := NewTable([]Entry{
		perDiem("DE", "", 28, "2024-01-01", nil),
		perDiem("DE", "Berlin", 30, "2025-01-01", nil),
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		city string
		on   string
		want int64
	}{
		{"unknown city", "Hamburg", "2024-06-01", 28},
		{"city entry not yet effective", "Berlin", "2024-06-01", 28},
		{"city entry effective", "Berlin", "2025-02-01", 30},
		{"no city given", "", "2025-02-01", 28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Lookup("de", tt.city, "", date(tt.on))
			require.NoError(t, err)
			assert.True(t, got.FullDayRate.Equal(decimal.NewFromInt(tt.want)), "got %s", got.FullDayRate)
		})
	}
}

func TestTable_LookupPicksLatestEffectiveEntry(t *testing.T) {
	table, err := NewTable([]Entry{
		perDiem("DE", "", 28, "2024-01-01", nil),
		perDiem("DE", "", 24, "2020-01-01", datePtr("2023-12-31")),
	})
	require.NoError(t, err)

	got, err := table.Lookup("DE", "", "", date("2023-12-31"))
	require.NoError(t, err)
	assert.True(t, got.FullDayRate.Equal(decimal.NewFromInt(24)))

	got, err = table.Lookup("DE", "", "", date("2024-01-01"))
	require.NoError(t, err)
	assert.True(t, got.FullDayRate.Equal(decimal.NewFromInt(28)))
}

func TestTable_LookupNotFound(t *testing.T) {
	table, err := NewTable([]Entry{
		perDiem("DE", "", 28, "2024-01-01", nil),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		country string
		vehicle string
		on      string
	}{
		{"unknown country", "FR", "", "2024-06-01"},
		{"before first entry", "DE", "", "2023-06-01"},
		{"vehicle row missing", "DE", "car", "2024-06-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Lookup(tt.country, "", tt.vehicle, date(tt.on))
			var nf *NotFoundError
			require.True(t, errors.As(err, &nf), "want NotFoundError, got %v", err)
			assert.Equal(t, tt.vehicle, nf.VehicleType)
		})
	}
}

func TestNewTable_RejectsOverlappingRanges(t *testing.T) {
	_, err := NewTable([]Entry{
		perDiem("DE", "", 28, "2024-01-01", nil),
		perDiem("DE", "", 24, "2020-01-01", datePtr("2024-01-01")),
	})
	assert.ErrorIs(t, err, ErrOverlappingRange)

	_, err = NewTable([]Entry{
		perDiem("DE", "", 28, "2024-01-01", nil),
		perDiem("DE", "", 30, "2025-01-01", nil),
	})
	assert.ErrorIs(t, err, ErrOverlappingRange)
}

func TestNewTable_RejectsInvalidEntries(t *testing.T) {
	negative := perDiem("DE", "", 28, "2024-01-01", nil)
	negative.IncidentalRate = decimal.NewFromInt(-1)

	noCurrency := perDiem("DE", "", 28, "2024-01-01", nil)
	noCurrency.Currency = ""

	inverted := perDiem("DE", "", 28, "2024-01-01", datePtr("2023-01-01"))

	for name, e := range map[string]Entry{
		"negative rate": negative,
		"no currency":   noCurrency,
		"inverted":      inverted,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewTable([]Entry{e})
			assert.ErrorIs(t, err, ErrInvalidRate)
		})
	}
}

func TestTable_EntriesIsSortedCopy(t *testing.T) {
	table, err := NewTable([]Entry{
		perDiem("FR", "", 20, "2024-01-01", nil),
		perDiem("DE", "", 28, "2024-01-01", nil),
	})
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "DE", entries[0].CountryCode)
	assert.Equal(t, 2, table.Len())
}
