// Command ratecheck validates a rate table file and shows which entry a query selects.
//
//	ratecheck -file configs/rates.yaml -country DE -city Berlin -date 2024-06-01
//	ratecheck -file rates.xlsx -country DE -vehicle car -km 120
//	ratecheck -file configs/rates.yaml -export rates.xlsx
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/allowance"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/ratesource"
	"github.com/garyjia/travel-reimbursement/pkg/utils"
	"github.com/shopspring/decimal"
)

type options struct {
	file    string
	sheet   string
	country string
	city    string
	vehicle string
	date    string
	endDate string
	km      string
	export  string
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "rate table (.yaml, .yml or .xlsx)")
	flag.StringVar(&opts.sheet, "sheet", "rates", "worksheet name for .xlsx files")
	flag.StringVar(&opts.country, "country", "", "ISO country code to look up")
	flag.StringVar(&opts.city, "city", "", "city override to try first")
	flag.StringVar(&opts.vehicle, "vehicle", "", "vehicle type for a mileage lookup")
	flag.StringVar(&opts.date, "date", time.Now().UTC().Format(time.DateOnly), "lookup date (YYYY-MM-DD)")
	flag.StringVar(&opts.endDate, "end", "", "trip end date; prices a per-diem trip from -date")
	flag.StringVar(&opts.km, "km", "", "distance; prices a mileage claim with -vehicle")
	flag.StringVar(&opts.export, "export", "", "write the validated table to this .xlsx file")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ratecheck: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer) error {
	if opts.file == "" {
		return errors.New("-file is required")
	}

	entries, err := ratesource.Load(opts.file, opts.sheet)
	if err != nil {
		return err
	}
	table, err := rate.NewTable(entries)
	if err != nil {
		return fmt.Errorf("rate table is invalid: %w", err)
	}
	fmt.Fprintf(out, "%s: %d entries OK\n", opts.file, table.Len())

	if opts.export != "" {
		if err := ratesource.WriteXLSX(opts.export, opts.sheet, table.Entries()); err != nil {
			return err
		}
		fmt.Fprintf(out, "exported to %s\n", opts.export)
	}

	if opts.country == "" {
		return nil
	}

	date, err := utils.ParseDate(opts.date)
	if err != nil {
		return fmt.Errorf("-date: %w", err)
	}

	entry, err := table.Lookup(opts.country, opts.city, opts.vehicle, date)
	if err != nil {
		return err
	}
	if err := printJSON(out, entry); err != nil {
		return err
	}

	calc := allowance.NewCalculator(table)
	switch {
	case opts.km != "":
		km, err := decimal.NewFromString(opts.km)
		if err != nil {
			return fmt.Errorf("-km: %w", err)
		}
		result, err := calc.ComputeMileage(km, opts.country, opts.vehicle, date)
		if err != nil {
			return err
		}
		return printJSON(out, result)
	case opts.endDate != "":
		end, err := utils.ParseDate(opts.endDate)
		if err != nil {
			return fmt.Errorf("-end: %w", err)
		}
		result, err := calc.QuotePerDiem(allowance.TripSpan{StartDate: date, EndDate: end},
			opts.country, opts.city, allowance.MealDeductions{}, false)
		if err != nil {
			return err
		}
		return printJSON(out, result)
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
