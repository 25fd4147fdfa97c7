package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/dispatcher"
	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/garyjia/travel-reimbursement/internal/domain/event"
	domainwf "github.com/garyjia/travel-reimbursement/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCurrencyMismatch is returned when an expense is submitted in a currency other than the
// reporting currency of the rule set
var ErrCurrencyMismatch = errors.New("expense currency differs from reporting currency")

// maxVersionRetries bounds how often ResolveStep re-reads a workflow after a stale write
const maxVersionRetries = 3

// ApprovalEngine drives submitted expenses through their approval steps
type ApprovalEngine interface {
	// Submit starts a workflow for a draft (or previously rejected) expense
	Submit(ctx context.Context, expenseID string) (*entity.ApprovalWorkflow, error)

	// ResolveStep records an approver's decision on the current step
	ResolveStep(ctx context.Context, workflowID string, stepIndex int, decision entity.Decision, approverID, comment string) (*entity.ApprovalWorkflow, error)

	// CheckSla evaluates the current step of wf at now and escalates overdue steps once
	CheckSla(ctx context.Context, wf *entity.ApprovalWorkflow, now time.Time) entity.SlaState

	// CheckSlaByID loads a workflow and evaluates it at the engine clock
	CheckSlaByID(ctx context.Context, workflowID string) (*SlaReport, error)

	// SweepSla checks every active workflow and returns how many are overdue
	SweepSla(ctx context.Context, limit int) (int, error)

	GetWorkflow(ctx context.Context, workflowID string) (*entity.ApprovalWorkflow, error)
	GetWorkflowByExpense(ctx context.Context, expenseID string) (*entity.ApprovalWorkflow, error)
}

// SlaBreachHandler is invoked when a step is found overdue. An error leaves the step
// eligible for another attempt on the next check.
type SlaBreachHandler func(ctx context.Context, wf *entity.ApprovalWorkflow, step entity.ApprovalStep) error

// SlaReport is the result of an SLA check on a stored workflow
type SlaReport struct {
	WorkflowID string                `json:"workflow_id"`
	Status     entity.ApprovalStatus `json:"status"`
	State      entity.SlaState       `json:"state"`
	StepIndex  int                   `json:"step_index"`
	Role       string                `json:"role,omitempty"`
	DueAt      *time.Time            `json:"due_at,omitempty"`
	CheckedAt  time.Time             `json:"checked_at"`
}

type engineImpl struct {
	expenseRepo  port.ExpenseRepository
	workflowRepo port.WorkflowRepository
	txManager    port.TransactionManager
	rules        domainwf.RuleSet
	logger       *zap.Logger

	dispatcher dispatcher.Dispatcher
	onBreach   SlaBreachHandler
	now        func() time.Time

	locks *keyedLocker

	// escalated remembers the step index already escalated per workflow
	escMu     sync.Mutex
	escalated map[string]int
}

// EngineOption configures the approval engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithSlaBreachHandler sets the hook called for overdue steps
func WithSlaBreachHandler(h SlaBreachHandler) EngineOption {
	return func(e *engineImpl) {
		e.onBreach = h
	}
}

// NewEngine creates an approval engine for the given rule set
func NewEngine(
	expenseRepo port.ExpenseRepository,
	workflowRepo port.WorkflowRepository,
	txManager port.TransactionManager,
	rules domainwf.RuleSet,
	logger *zap.Logger,
	opts ...EngineOption,
) (ApprovalEngine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &engineImpl{
		expenseRepo:  expenseRepo,
		workflowRepo: workflowRepo,
		txManager:    txManager,
		rules:        rules,
		logger:       logger,
		now:          time.Now,
		locks:        newKeyedLocker(),
		escalated:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *engineImpl) Submit(ctx context.Context, expenseID string) (*entity.ApprovalWorkflow, error) {
	unlock := e.locks.Lock("expense:" + expenseID)
	defer unlock()

	expense, err := e.expenseRepo.Find(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense %s: %w", expenseID, err)
	}

	latest, err := e.workflowRepo.GetLatestByExpenseID(ctx, expenseID)
	switch {
	case err == nil && !latest.IsTerminal():
		return nil, &domainwf.AlreadySubmittedError{ExpenseID: expenseID, WorkflowID: latest.ID, Status: latest.Status}
	case err != nil && !errors.Is(err, port.ErrNotFound):
		return nil, fmt.Errorf("failed to load workflow for expense %s: %w", expenseID, err)
	}

	if expense.ApprovalStatus != entity.ApprovalStatusDraft && expense.ApprovalStatus != entity.ApprovalStatusRejected {
		return nil, &domainwf.AlreadySubmittedError{ExpenseID: expenseID, Status: expense.ApprovalStatus}
	}
	if expense.Currency != e.rules.Currency {
		return nil, fmt.Errorf("%w: %s, expected %s", ErrCurrencyMismatch, expense.Currency, e.rules.Currency)
	}

	now := e.now()
	wf := &entity.ApprovalWorkflow{
		ID:        uuid.NewString(),
		ExpenseID: expense.ID,
		Amount:    expense.Amount,
		Currency:  expense.Currency,
		Steps:     e.rules.BuildSteps(expense.Amount, now),
		CreatedAt: now,
	}
	domainwf.Start(wf, now)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.workflowRepo.Create(txCtx, wf); err != nil {
			return fmt.Errorf("failed to create workflow: %w", err)
		}
		// the workflow copies the amount read above, so the expense must not have been
		// edited since
		if err := e.expenseRepo.TransitionStatus(txCtx, expense.ID, expense.Version, wf.Status); err != nil {
			return fmt.Errorf("failed to update expense status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow submitted",
		zap.String("workflow_id", wf.ID),
		zap.String("expense_id", wf.ExpenseID),
		zap.String("amount", wf.Amount.StringFixed(2)),
		zap.Int("steps", len(wf.Steps)),
		zap.Int("current_step", wf.CurrentStepIndex))

	e.emit(ctx, event.NewEvent(event.TypeWorkflowSubmitted, wf.ID, wf.ExpenseID, map[string]interface{}{
		event.KeyAmount:   wf.Amount.StringFixed(2),
		event.KeyCurrency: wf.Currency,
	}, now))

	return wf.Clone(), nil
}

func (e *engineImpl) ResolveStep(ctx context.Context, workflowID string, stepIndex int, decision entity.Decision, approverID, comment string) (*entity.ApprovalWorkflow, error) {
	unlock := e.locks.Lock("workflow:" + workflowID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		wf, err := e.workflowRepo.GetByID(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		now := e.now()
		next := wf.Clone()
		if err := domainwf.Resolve(next, stepIndex, decision, approverID, comment, now); err != nil {
			return nil, err
		}

		err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := e.workflowRepo.Update(txCtx, next, wf.Version); err != nil {
				return err
			}
			if next.IsTerminal() {
				if err := e.expenseRepo.UpdateStatus(txCtx, next.ExpenseID, next.Status); err != nil {
					return fmt.Errorf("failed to update expense status: %w", err)
				}
			}
			return nil
		})
		if errors.Is(err, port.ErrVersionConflict) && attempt < maxVersionRetries {
			e.logger.Warn("Stale workflow write, retrying",
				zap.String("workflow_id", workflowID),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save workflow %s: %w", workflowID, err)
		}

		e.clearEscalation(workflowID)
		e.logger.Info("Step resolved",
			zap.String("workflow_id", next.ID),
			zap.Int("step_index", stepIndex),
			zap.String("decision", string(decision)),
			zap.String("approver_id", approverID),
			zap.String("status", next.Status.String()))

		e.emitResolution(ctx, next, stepIndex, decision, approverID, now)
		return next, nil
	}
}

func (e *engineImpl) emitResolution(ctx context.Context, wf *entity.ApprovalWorkflow, stepIndex int, decision entity.Decision, approverID string, now time.Time) {
	resolved := event.NewEvent(event.TypeStepResolved, wf.ID, wf.ExpenseID, map[string]interface{}{
		event.KeyStepIndex:  stepIndex,
		event.KeyRole:       wf.Steps[stepIndex].Role,
		event.KeyDecision:   string(decision),
		event.KeyApproverID: approverID,
	}, now)
	e.emit(ctx, resolved)

	var terminal event.Type
	switch wf.Status {
	case entity.ApprovalStatusApproved:
		terminal = event.TypeWorkflowApproved
	case entity.ApprovalStatusRejected:
		terminal = event.TypeWorkflowRejected
	default:
		return
	}
	e.emit(ctx, event.NewEventWithCorrelation(terminal, wf.ID, wf.ExpenseID, map[string]interface{}{
		event.KeyAmount:   wf.Amount.StringFixed(2),
		event.KeyCurrency: wf.Currency,
	}, now, resolved.CorrelationID))
}

func (e *engineImpl) CheckSla(ctx context.Context, wf *entity.ApprovalWorkflow, now time.Time) entity.SlaState {
	state, step, ok := domainwf.EvaluateSla(wf, now)
	if !ok || state != entity.SlaOverdue {
		return state
	}

	if !e.claimEscalation(wf.ID, wf.CurrentStepIndex) {
		return state
	}

	e.logger.Warn("Approval step overdue",
		zap.String("workflow_id", wf.ID),
		zap.Int("step_index", wf.CurrentStepIndex),
		zap.String("role", step.Role))

	if e.onBreach != nil {
		if err := e.onBreach(ctx, wf.Clone(), step); err != nil {
			e.releaseEscalation(wf.ID, wf.CurrentStepIndex)
			e.logger.Error("SLA breach handler failed",
				zap.String("workflow_id", wf.ID),
				zap.Int("step_index", wf.CurrentStepIndex),
				zap.Error(err))
			return state
		}
	}

	payload := map[string]interface{}{
		event.KeyStepIndex: wf.CurrentStepIndex,
		event.KeyRole:      step.Role,
	}
	if step.DueAt != nil {
		payload[event.KeyDueAt] = step.DueAt.Format(time.RFC3339)
	}
	e.emit(ctx, event.NewEvent(event.TypeSlaBreached, wf.ID, wf.ExpenseID, payload, now))

	return state
}

func (e *engineImpl) CheckSlaByID(ctx context.Context, workflowID string) (*SlaReport, error) {
	wf, err := e.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	now := e.now()
	report := &SlaReport{
		WorkflowID: wf.ID,
		Status:     wf.Status,
		State:      e.CheckSla(ctx, wf, now),
		StepIndex:  wf.CurrentStepIndex,
		CheckedAt:  now,
	}
	if step, ok := wf.CurrentStep(); ok {
		report.Role = step.Role
		report.DueAt = step.DueAt
	}
	return report, nil
}

func (e *engineImpl) SweepSla(ctx context.Context, limit int) (int, error) {
	active, err := e.workflowRepo.ListActive(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list active workflows: %w", err)
	}

	now := e.now()
	overdue := 0
	for _, wf := range active {
		if ctx.Err() != nil {
			return overdue, ctx.Err()
		}
		if e.CheckSla(ctx, wf, now) == entity.SlaOverdue {
			overdue++
		}
	}
	return overdue, nil
}

func (e *engineImpl) GetWorkflow(ctx context.Context, workflowID string) (*entity.ApprovalWorkflow, error) {
	wf, err := e.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}
	return wf, nil
}

func (e *engineImpl) GetWorkflowByExpense(ctx context.Context, expenseID string) (*entity.ApprovalWorkflow, error) {
	wf, err := e.workflowRepo.GetLatestByExpenseID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow for expense %s: %w", expenseID, err)
	}
	return wf, nil
}

// claimEscalation returns true the first time a (workflow, step) pair is escalated
func (e *engineImpl) claimEscalation(workflowID string, stepIndex int) bool {
	e.escMu.Lock()
	defer e.escMu.Unlock()

	if idx, ok := e.escalated[workflowID]; ok && idx == stepIndex {
		return false
	}
	e.escalated[workflowID] = stepIndex
	return true
}

func (e *engineImpl) releaseEscalation(workflowID string, stepIndex int) {
	e.escMu.Lock()
	defer e.escMu.Unlock()

	if idx, ok := e.escalated[workflowID]; ok && idx == stepIndex {
		delete(e.escalated, workflowID)
	}
}

func (e *engineImpl) clearEscalation(workflowID string) {
	e.escMu.Lock()
	defer e.escMu.Unlock()
	delete(e.escalated, workflowID)
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}
