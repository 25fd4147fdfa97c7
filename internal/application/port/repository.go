package port

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks -source=repository.go

import (
	"context"
	"errors"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
)

var (
	// ErrNotFound is returned by repositories when no row matches
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a conditional write finds the stored row at another
	// version or state
	ErrVersionConflict = errors.New("version conflict")
)

// ExpenseFilter narrows ExpenseRepository.List. Zero values match everything.
type ExpenseFilter struct {
	OwnerID string
	Status  entity.ApprovalStatus
	Limit   int
	Offset  int
}

// ExpenseRepository defines persistence operations for ExpenseRecord
type ExpenseRepository interface {
	// Save inserts a record whose Version is zero. Otherwise it replaces the stored record
	// only while that is a draft at expense.Version, and fails with ErrVersionConflict if not.
	// Save leaves the new version in expense.Version.
	Save(ctx context.Context, expense *entity.ExpenseRecord) error
	Find(ctx context.Context, id string) (*entity.ExpenseRecord, error)
	UpdateStatus(ctx context.Context, id string, status entity.ApprovalStatus) error

	// TransitionStatus is UpdateStatus guarded by the version the caller read
	TransitionStatus(ctx context.Context, id string, expectedVersion int, status entity.ApprovalStatus) error

	// Delete removes a draft. Any other status fails with ErrVersionConflict.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ExpenseFilter) ([]*entity.ExpenseRecord, error)
}

// WorkflowRepository defines persistence operations for ApprovalWorkflow and its steps
type WorkflowRepository interface {
	// Create stores a new workflow at version 1
	Create(ctx context.Context, wf *entity.ApprovalWorkflow) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalWorkflow, error)

	// GetLatestByExpenseID returns the most recently created workflow for an expense
	GetLatestByExpenseID(ctx context.Context, expenseID string) (*entity.ApprovalWorkflow, error)

	// Update writes wf only if the stored version equals expectedVersion, and bumps wf.Version.
	// A stale write fails with ErrVersionConflict.
	Update(ctx context.Context, wf *entity.ApprovalWorkflow, expectedVersion int) error

	// ListActive returns in_review workflows, oldest first
	ListActive(ctx context.Context, limit int) ([]*entity.ApprovalWorkflow, error)
}

// RateRepository stores the imported rate table
type RateRepository interface {
	// ReplaceAll swaps the stored table for entries in one transaction
	ReplaceAll(ctx context.Context, entries []rate.Entry) error
	List(ctx context.Context) ([]rate.Entry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
