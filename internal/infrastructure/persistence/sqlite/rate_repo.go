package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"go.uber.org/zap"
)

// RateRepository implements port.RateRepository over rate_entries. Effective dates are
// stored as calendar days.
type RateRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRateRepository creates a new rate repository
func NewRateRepository(db *DB, logger *zap.Logger) *RateRepository {
	return &RateRepository{db: db, logger: logger}
}

// ReplaceAll deletes the stored table and inserts entries in one transaction
func (r *RateRepository) ReplaceAll(ctx context.Context, entries []rate.Entry) error {
	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.executor(txCtx)

		if _, err := exec.ExecContext(txCtx, `DELETE FROM rate_entries`); err != nil {
			return fmt.Errorf("failed to clear rate entries: %w", err)
		}

		for _, e := range entries {
			var to sql.NullString
			if e.EffectiveTo != nil {
				to = sql.NullString{String: e.EffectiveTo.Format(time.DateOnly), Valid: true}
			}
			_, err := exec.ExecContext(txCtx, `
				INSERT INTO rate_entries (
					country_code, city, vehicle_type, full_day_rate, half_day_rate,
					accommodation_rate, incidental_rate, rate_per_km, currency,
					effective_from, effective_to
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.CountryCode, e.City, e.VehicleType, e.FullDayRate, e.HalfDayRate,
				e.AccommodationRate, e.IncidentalRate, e.RatePerKm, e.Currency,
				e.EffectiveFrom.Format(time.DateOnly), to,
			)
			if err != nil {
				return fmt.Errorf("failed to insert rate entry %s/%s: %w", e.CountryCode, e.City, err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to replace rate table", zap.Error(err))
		return err
	}

	r.logger.Info("Rate table replaced", zap.Int("entries", len(entries)))
	return nil
}

// List returns all stored entries in insertion order
func (r *RateRepository) List(ctx context.Context) ([]rate.Entry, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx, `
		SELECT country_code, city, vehicle_type, full_day_rate, half_day_rate,
			accommodation_rate, incidental_rate, rate_per_km, currency,
			effective_from, effective_to
		FROM rate_entries
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate entries: %w", err)
	}
	defer rows.Close()

	entries := []rate.Entry{}
	for rows.Next() {
		var (
			e    rate.Entry
			from string
			to   sql.NullString
		)
		err := rows.Scan(&e.CountryCode, &e.City, &e.VehicleType, &e.FullDayRate, &e.HalfDayRate,
			&e.AccommodationRate, &e.IncidentalRate, &e.RatePerKm, &e.Currency, &from, &to)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate entry: %w", err)
		}

		if e.EffectiveFrom, err = time.Parse(time.DateOnly, from); err != nil {
			return nil, fmt.Errorf("invalid effective_from %q: %w", from, err)
		}
		if to.Valid {
			t, err := time.Parse(time.DateOnly, to.String)
			if err != nil {
				return nil, fmt.Errorf("invalid effective_to %q: %w", to.String, err)
			}
			e.EffectiveTo = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LoadTable builds a validated rate table from the stored entries
func (r *RateRepository) LoadTable(ctx context.Context) (*rate.Table, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return rate.NewTable(entries)
}

var _ port.RateRepository = (*RateRepository)(nil)
