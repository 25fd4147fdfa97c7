package ratesource

import (
	"fmt"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/garyjia/travel-reimbursement/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// row mirrors one entry of the rates list. Dates are calendar days (YYYY-MM-DD).
type row struct {
	CountryCode       string          `mapstructure:"country_code"`
	City              string          `mapstructure:"city"`
	VehicleType       string          `mapstructure:"vehicle_type"`
	FullDayRate       decimal.Decimal `mapstructure:"full_day_rate"`
	HalfDayRate       decimal.Decimal `mapstructure:"half_day_rate"`
	AccommodationRate decimal.Decimal `mapstructure:"accommodation_rate"`
	IncidentalRate    decimal.Decimal `mapstructure:"incidental_rate"`
	RatePerKm         decimal.Decimal `mapstructure:"rate_per_km"`
	Currency          string          `mapstructure:"currency"`
	EffectiveFrom     time.Time       `mapstructure:"effective_from"`
	EffectiveTo       *time.Time      `mapstructure:"effective_to"`
}

func (r row) entry() rate.Entry {
	return rate.Entry{
		CountryCode:       r.CountryCode,
		City:              r.City,
		VehicleType:       r.VehicleType,
		FullDayRate:       r.FullDayRate,
		HalfDayRate:       r.HalfDayRate,
		AccommodationRate: r.AccommodationRate,
		IncidentalRate:    r.IncidentalRate,
		RatePerKm:         r.RatePerKm,
		Currency:          r.Currency,
		EffectiveFrom:     r.EffectiveFrom,
		EffectiveTo:       r.EffectiveTo,
	}
}

// LoadYAML reads the top-level "rates" list of a YAML file
func LoadYAML(path string) ([]rate.Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rate file: %w", err)
	}

	var rows []row
	if err := v.UnmarshalKey("rates", &rows, viper.DecodeHook(utils.DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode rate file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rate file %s has no rates", path)
	}

	entries := make([]rate.Entry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry()
	}
	return entries, nil
}
