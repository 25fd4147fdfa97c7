package ratesource

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/garyjia/travel-reimbursement/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Columns of the rate sheet, in export order. Import matches headers by name so the
// columns may appear in any order.
var Columns = []string{
	"country_code", "city", "vehicle_type",
	"full_day_rate", "half_day_rate", "accommodation_rate", "incidental_rate", "rate_per_km",
	"currency", "effective_from", "effective_to",
}

// LoadXLSX reads a rate sheet whose first row holds the column headers
func LoadXLSX(path, sheet string) ([]rate.Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rate workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("rate workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no rate rows", sheet)
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"country_code", "currency", "effective_from"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("sheet %q is missing column %s", sheet, required)
		}
	}

	var entries []rate.Entry
	for n, cells := range rows[1:] {
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[i])
		}
		if get("country_code") == "" {
			continue
		}

		e, err := parseRow(get)
		if err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", sheet, n+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseRow(get func(string) string) (rate.Entry, error) {
	e := rate.Entry{
		CountryCode: get("country_code"),
		City:        get("city"),
		VehicleType: get("vehicle_type"),
		Currency:    get("currency"),
	}

	amounts := map[string]*decimal.Decimal{
		"full_day_rate":      &e.FullDayRate,
		"half_day_rate":      &e.HalfDayRate,
		"accommodation_rate": &e.AccommodationRate,
		"incidental_rate":    &e.IncidentalRate,
		"rate_per_km":        &e.RatePerKm,
	}
	for col, dst := range amounts {
		v := get(col)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return e, fmt.Errorf("%s: invalid amount %q", col, v)
		}
		*dst = d
	}

	from, err := parseCellDate(get("effective_from"))
	if err != nil {
		return e, fmt.Errorf("effective_from: %w", err)
	}
	e.EffectiveFrom = from

	if v := get("effective_to"); v != "" {
		to, err := parseCellDate(v)
		if err != nil {
			return e, fmt.Errorf("effective_to: %w", err)
		}
		e.EffectiveTo = &to
	}
	return e, nil
}

// parseCellDate accepts a date string or an Excel date serial
func parseCellDate(v string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return rate.Day(t), nil
	}
	return utils.ParseDate(v)
}

// WriteXLSX exports entries to a new workbook with a single sheet
func WriteXLSX(path, sheet string, entries []rate.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "rates"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range entries {
		to := ""
		if e.EffectiveTo != nil {
			to = e.EffectiveTo.Format(time.DateOnly)
		}
		values := []interface{}{
			e.CountryCode, e.City, e.VehicleType,
			e.FullDayRate.String(), e.HalfDayRate.String(), e.AccommodationRate.String(),
			e.IncidentalRate.String(), e.RatePerKm.String(),
			e.Currency, e.EffectiveFrom.Format(time.DateOnly), to,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save rate workbook: %w", err)
	}
	return nil
}
