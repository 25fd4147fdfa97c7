package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// inverse rates are derived with this many decimal places
const inversePrecision = 10

// ExchangeRateRepository stores dated exchange rates and serves them as a
// port.ExchangeRateProvider
type ExchangeRateRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewExchangeRateRepository creates a new exchange rate repository
func NewExchangeRateRepository(db *DB, logger *zap.Logger) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db, logger: logger}
}

// Upsert stores the rate converting one unit of from into to, effective from the given day
func (r *ExchangeRateRepository) Upsert(ctx context.Context, from, to string, effective time.Time, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("exchange rate %s->%s must be positive, got %s", from, to, rate)
	}

	_, err := r.db.executor(ctx).ExecContext(ctx, `
		INSERT INTO exchange_rates (from_currency, to_currency, effective_date, rate)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (from_currency, to_currency, effective_date) DO UPDATE SET rate = excluded.rate`,
		strings.ToUpper(from), strings.ToUpper(to), effective.Format(time.DateOnly), rate,
	)
	if err != nil {
		return fmt.Errorf("failed to store exchange rate: %w", err)
	}
	return nil
}

// GetExchangeRate returns the latest rate effective on or before the given day. When only
// the opposite direction is stored its inverse is returned. A missing pair yields
// port.ErrNotFound.
func (r *ExchangeRateRepository) GetExchangeRate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error) {
	rate, err := r.DirectRate(ctx, from, to, on)
	if !errors.Is(err, port.ErrNotFound) {
		return rate, err
	}

	inverse, invErr := r.DirectRate(ctx, to, from, on)
	if errors.Is(invErr, port.ErrNotFound) {
		return decimal.Zero, err
	}
	if invErr != nil {
		return decimal.Zero, invErr
	}
	return decimal.NewFromInt(1).DivRound(inverse, inversePrecision), nil
}

// DirectRate is GetExchangeRate without the inverse fallback
func (r *ExchangeRateRepository) DirectRate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	day := on.Format(time.DateOnly)
	rate, err := r.latest(ctx, from, to, day)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("exchange rate %s->%s on %s: %w", from, to, day, port.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

func (r *ExchangeRateRepository) latest(ctx context.Context, from, to, day string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.db.executor(ctx).QueryRowContext(ctx, `
		SELECT rate FROM exchange_rates
		WHERE from_currency = ? AND to_currency = ? AND effective_date <= ?
		ORDER BY effective_date DESC
		LIMIT 1`, from, to, day).Scan(&rate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Failed to query exchange rate", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to query exchange rate: %w", err)
	}
	return rate, err
}

var _ port.ExchangeRateProvider = (*ExchangeRateRepository)(nil)
