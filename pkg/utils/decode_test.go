package utils

import (
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Amount   decimal.Decimal `mapstructure:"amount"`
	Rate     decimal.Decimal `mapstructure:"rate"`
	Count    decimal.Decimal `mapstructure:"count"`
	From     time.Time       `mapstructure:"from"`
	Until    *time.Time      `mapstructure:"until"`
	Interval time.Duration   `mapstructure:"interval"`
}

func decode(t *testing.T, input map[string]interface{}) (decodeTarget, error) {
	t.Helper()

	var out decodeTarget
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       DecodeHook(),
		Result:           &out,
		WeaklyTypedInput: true,
	})
	require.NoError(t, err)
	return out, dec.Decode(input)
}

func TestDecodeHook(t *testing.T) {
	out, err := decode(t, map[string]interface{}{
		"amount":   "150.25",
		"rate":     0.3,
		"count":    12,
		"from":     "2024-01-01",
		"until":    "2024-12-31",
		"interval": "5m",
	})
	require.NoError(t, err)

	assert.True(t, out.Amount.Equal(decimal.RequireFromString("150.25")))
	assert.True(t, out.Rate.Equal(decimal.RequireFromString("0.3")))
	assert.True(t, out.Count.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out.From)
	require.NotNil(t, out.Until)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *out.Until)
	assert.Equal(t, 5*time.Minute, out.Interval)
}

func TestDecodeHook_Invalid(t *testing.T) {
	_, err := decode(t, map[string]interface{}{"amount": "12,50"})
	assert.Error(t, err)

	_, err = decode(t, map[string]interface{}{"from": "01.02.2024"})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-04T22:15:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), got)
}
