package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	domainwf "github.com/garyjia/travel-reimbursement/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const workflowColumns = `id, expense_id, amount, currency, current_step_index, status, version, created_at, updated_at`

// WorkflowRepository implements port.WorkflowRepository. Steps live in approval_steps and
// are rewritten with their workflow.
type WorkflowRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *DB, logger *zap.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create stores wf and its steps at version 1
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.ApprovalWorkflow) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.executor(txCtx)

		_, err := exec.ExecContext(txCtx, `
			INSERT INTO approval_workflows (`+workflowColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			wf.ID, wf.ExpenseID, wf.Amount, wf.Currency, wf.CurrentStepIndex,
			string(wf.Status), formatTime(wf.CreatedAt), formatTime(wf.UpdatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create workflow", zap.String("workflow_id", wf.ID), zap.Error(err))
			return fmt.Errorf("failed to create workflow: %w", err)
		}

		if err := r.insertSteps(txCtx, wf); err != nil {
			return err
		}
		wf.Version = 1
		return nil
	})
}

// Update writes wf if the stored version still equals expectedVersion
func (r *WorkflowRepository) Update(ctx context.Context, wf *entity.ApprovalWorkflow, expectedVersion int) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.executor(txCtx)

		result, err := exec.ExecContext(txCtx, `
			UPDATE approval_workflows
			SET current_step_index = ?, status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			wf.CurrentStepIndex, string(wf.Status), formatTime(wf.UpdatedAt), wf.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update workflow: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			var exists int
			err := exec.QueryRowContext(txCtx, `SELECT 1 FROM approval_workflows WHERE id = ?`, wf.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("workflow %s: %w", wf.ID, port.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to check workflow: %w", err)
			}
			return fmt.Errorf("workflow %s at version %d: %w", wf.ID, expectedVersion, port.ErrVersionConflict)
		}

		if _, err := exec.ExecContext(txCtx, `DELETE FROM approval_steps WHERE workflow_id = ?`, wf.ID); err != nil {
			return fmt.Errorf("failed to clear steps: %w", err)
		}
		if err := r.insertSteps(txCtx, wf); err != nil {
			return err
		}

		wf.Version = expectedVersion + 1
		return nil
	})
}

// GetByID retrieves a workflow with its steps
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalWorkflow, error) {
	return r.getOne(ctx, `SELECT `+workflowColumns+` FROM approval_workflows WHERE id = ?`, id)
}

// GetLatestByExpenseID retrieves the most recent workflow of an expense
func (r *WorkflowRepository) GetLatestByExpenseID(ctx context.Context, expenseID string) (*entity.ApprovalWorkflow, error) {
	return r.getOne(ctx, `
		SELECT `+workflowColumns+` FROM approval_workflows
		WHERE expense_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, expenseID)
}

// ListActive returns in_review workflows, oldest first
func (r *WorkflowRepository) ListActive(ctx context.Context, limit int) ([]*entity.ApprovalWorkflow, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.executor(ctx).QueryContext(ctx, `
		SELECT `+workflowColumns+` FROM approval_workflows
		WHERE status = ?
		ORDER BY created_at, rowid
		LIMIT ?`, string(entity.ApprovalStatusInReview), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}

	var workflows []*entity.ApprovalWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, wf := range workflows {
		if wf.Steps, err = r.loadSteps(ctx, wf.ID); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, arg string) (*entity.ApprovalWorkflow, error) {
	wf, err := scanWorkflow(r.db.executor(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow for %s: %w", arg, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if wf.Steps, err = r.loadSteps(ctx, wf.ID); err != nil {
		return nil, err
	}
	return wf, nil
}

func (r *WorkflowRepository) insertSteps(ctx context.Context, wf *entity.ApprovalWorkflow) error {
	exec := r.db.executor(ctx)
	for i, s := range wf.Steps {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO approval_steps (
				workflow_id, step_index, role, approver_id, status, sla_hours, due_at, resolved_at, comment
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			wf.ID, i, s.Role, s.ApproverID, string(s.Status), s.SlaHours,
			formatNullTime(s.DueAt), formatNullTime(s.ResolvedAt), s.Comment,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", i, err)
		}
	}
	return nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflowID string) ([]entity.ApprovalStep, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx, `
		SELECT role, approver_id, status, sla_hours, due_at, resolved_at, comment
		FROM approval_steps
		WHERE workflow_id = ?
		ORDER BY step_index`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	defer rows.Close()

	steps := []entity.ApprovalStep{}
	for rows.Next() {
		var (
			s             entity.ApprovalStep
			status        string
			due, resolved sql.NullString
		)
		if err := rows.Scan(&s.Role, &s.ApproverID, &status, &s.SlaHours, &due, &resolved, &s.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Status = entity.StepStatus(status)
		if !s.Status.IsValid() {
			return nil, &domainwf.InvalidStepStatusError{WorkflowID: workflowID, StepIndex: len(steps), Status: s.Status}
		}
		if s.DueAt, err = parseNullTime(due); err != nil {
			return nil, err
		}
		if s.ResolvedAt, err = parseNullTime(resolved); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func scanWorkflow(row rowScanner) (*entity.ApprovalWorkflow, error) {
	var (
		wf                   entity.ApprovalWorkflow
		amount               decimal.Decimal
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&wf.ID, &wf.ExpenseID, &amount, &wf.Currency, &wf.CurrentStepIndex,
		&status, &wf.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	wf.Amount = amount
	wf.Status = entity.ApprovalStatus(status)
	if wf.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if wf.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &wf, nil
}

var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
