package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const expenseColumns = `id, owner_id, description, category, amount, currency, expense_date,
	mileage_km, vehicle_type, original_amount, original_currency, exchange_rate,
	receipt_path, approval_status, version, created_at, updated_at`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{db: db, logger: logger}
}

// Save inserts e when e.Version is zero. Otherwise it overwrites the stored row only while
// that row is still a draft at e.Version; any other state fails with port.ErrVersionConflict.
// On success e.Version holds the stored version.
func (r *ExpenseRepository) Save(ctx context.Context, e *entity.ExpenseRecord) error {
	if e.Version == 0 {
		return r.insert(ctx, e)
	}

	query := `
		UPDATE expenses SET
			owner_id = ?,
			description = ?,
			category = ?,
			amount = ?,
			currency = ?,
			expense_date = ?,
			mileage_km = ?,
			vehicle_type = ?,
			original_amount = ?,
			original_currency = ?,
			exchange_rate = ?,
			receipt_path = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ? AND approval_status = ?
	`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		e.OwnerID,
		e.Description,
		string(e.Category),
		e.Amount,
		e.Currency,
		formatTime(e.ExpenseDate),
		nullDecimal(e.MileageKm),
		e.VehicleType,
		nullDecimal(e.OriginalAmount),
		e.OriginalCurrency,
		nullDecimal(e.ExchangeRate),
		e.ReceiptPath,
		formatTime(e.UpdatedAt),
		e.ID,
		e.Version,
		string(entity.ApprovalStatusDraft),
	)
	if err != nil {
		r.logger.Error("Failed to save expense", zap.String("expense_id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to save expense: %w", err)
	}
	if err := r.requireWritten(ctx, result, e.ID, e.Version); err != nil {
		return err
	}
	e.Version++
	return nil
}

func (r *ExpenseRepository) insert(ctx context.Context, e *entity.ExpenseRecord) error {
	query := `
		INSERT INTO expenses (` + expenseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		e.ID,
		e.OwnerID,
		e.Description,
		string(e.Category),
		e.Amount,
		e.Currency,
		formatTime(e.ExpenseDate),
		nullDecimal(e.MileageKm),
		e.VehicleType,
		nullDecimal(e.OriginalAmount),
		e.OriginalCurrency,
		nullDecimal(e.ExchangeRate),
		e.ReceiptPath,
		string(e.ApprovalStatus),
		1,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to insert expense", zap.String("expense_id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	e.Version = 1
	return nil
}

// Find retrieves an expense by ID
func (r *ExpenseRepository) Find(ctx context.Context, id string) (*entity.ExpenseRecord, error) {
	row := r.db.executor(ctx).QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// UpdateStatus sets the approval status of an expense regardless of its version
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id string, status entity.ApprovalStatus) error {
	result, err := r.db.executor(ctx).ExecContext(ctx,
		`UPDATE expenses SET approval_status = ?, updated_at = ?, version = version + 1 WHERE id = ?`,
		string(status), formatTime(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update expense status: %w", err)
	}
	return requireAffected(result, "expense", id)
}

// TransitionStatus sets the approval status only if the stored row is still at expectedVersion
func (r *ExpenseRepository) TransitionStatus(ctx context.Context, id string, expectedVersion int, status entity.ApprovalStatus) error {
	result, err := r.db.executor(ctx).ExecContext(ctx,
		`UPDATE expenses SET approval_status = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		string(status), formatTime(nowUTC()), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update expense status: %w", err)
	}
	return r.requireWritten(ctx, result, id, expectedVersion)
}

// Delete removes a draft expense. A submitted expense fails with port.ErrVersionConflict.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.executor(ctx).ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND approval_status = ?`,
		id, string(entity.ApprovalStatusDraft))
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return r.requireWritten(ctx, result, id, 0)
}

// requireWritten tells a missing row (ErrNotFound) from one that exists in another state
// (ErrVersionConflict) when a conditional write touched nothing
func (r *ExpenseRepository) requireWritten(ctx context.Context, result sql.Result, id string, version int) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.executor(ctx).QueryRowContext(ctx, `SELECT 1 FROM expenses WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("expense %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense %s: %w", id, err)
	}
	if version > 0 {
		return fmt.Errorf("expense %s at version %d: %w", id, version, port.ErrVersionConflict)
	}
	return fmt.Errorf("expense %s: %w", id, port.ErrVersionConflict)
}

// List returns expenses matching filter, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.ExpenseRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "approval_status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.ExpenseRecord
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner) (*entity.ExpenseRecord, error) {
	var (
		e                                   entity.ExpenseRecord
		category, status                    string
		amount                              decimal.Decimal
		expenseDate, createdAt, updatedAt   string
		mileage, originalAmount, exchangeRt decimal.NullDecimal
	)

	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Description,
		&category,
		&amount,
		&e.Currency,
		&expenseDate,
		&mileage,
		&e.VehicleType,
		&originalAmount,
		&e.OriginalCurrency,
		&exchangeRt,
		&e.ReceiptPath,
		&status,
		&e.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Category = entity.Category(category)
	e.ApprovalStatus = entity.ApprovalStatus(status)
	e.Amount = amount
	e.MileageKm = decimalPtr(mileage)
	e.OriginalAmount = decimalPtr(originalAmount)
	e.ExchangeRate = decimalPtr(exchangeRt)

	if e.ExpenseDate, err = parseTime(expenseDate); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, port.ErrNotFound)
	}
	return nil
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
