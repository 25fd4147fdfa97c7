package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/garyjia/travel-reimbursement/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db, logger))
	return NewDB(db.DB, logger)
}

func sampleExpense(id string) *entity.ExpenseRecord {
	return &entity.ExpenseRecord{
		ID:             id,
		OwnerID:        "emp-1",
		Description:    "Taxi to airport",
		Category:       entity.CategoryTransport,
		Amount:         decimal.RequireFromString("42.50"),
		Currency:       "EUR",
		ExpenseDate:    t0,
		ApprovalStatus: entity.ApprovalStatusDraft,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

func saveExpense(t *testing.T, db *DB, id string) {
	t.Helper()
	require.NoError(t, NewExpenseRepository(db, zap.NewNop()).Save(context.Background(), sampleExpense(id)))
}
