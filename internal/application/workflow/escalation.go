package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"go.uber.org/zap"
)

// EscalationChain maps a role to the role that is notified when it misses its SLA
type EscalationChain map[string]string

// Next returns the role above role, or "" when the chain ends there
func (c EscalationChain) Next(role string) string {
	return c[strings.ToLower(role)]
}

// NewEscalationHandler returns an SlaBreachHandler that tells the next role up through every
// notifier. Roles without a successor escalate to themselves. The handler fails only when
// every notifier failed.
func NewEscalationHandler(chain EscalationChain, logger *zap.Logger, notifiers ...port.EscalationNotifier) SlaBreachHandler {
	normalized := make(EscalationChain, len(chain))
	for from, to := range chain {
		normalized[strings.ToLower(from)] = to
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, wf *entity.ApprovalWorkflow, step entity.ApprovalStep) error {
		if len(notifiers) == 0 {
			return nil
		}

		esc := port.Escalation{
			WorkflowID: wf.ID,
			ExpenseID:  wf.ExpenseID,
			StepIndex:  wf.CurrentStepIndex,
			Role:       step.Role,
			ApproverID: step.ApproverID,
			EscalateTo: normalized.Next(step.Role),
			Amount:     wf.Amount,
			Currency:   wf.Currency,
		}
		if esc.EscalateTo == "" {
			esc.EscalateTo = step.Role
		}
		if step.DueAt != nil {
			esc.DueAt = *step.DueAt
		}

		var errs []error
		for _, n := range notifiers {
			if err := n.NotifyEscalation(ctx, esc); err != nil {
				logger.Error("Escalation notifier failed",
					zap.String("workflow_id", wf.ID),
					zap.String("escalate_to", esc.EscalateTo),
					zap.Error(err))
				errs = append(errs, err)
			}
		}
		if len(errs) == len(notifiers) {
			return fmt.Errorf("all escalation notifiers failed: %w", errors.Join(errs...))
		}
		return nil
	}
}
