package workflow

import (
	"fmt"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
)

// DeriveStatus computes the workflow status from its steps: any rejection is final,
// any pending step keeps it in review, otherwise every step was approved or skipped.
func DeriveStatus(steps []entity.ApprovalStep) entity.ApprovalStatus {
	pending := false
	for _, s := range steps {
		switch s.Status {
		case entity.StepStatusRejected:
			return entity.ApprovalStatusRejected
		case entity.StepStatusPending:
			pending = true
		}
	}
	if pending {
		return entity.ApprovalStatusInReview
	}
	return entity.ApprovalStatusApproved
}

// CurrentIndex returns the index of the first pending step, or len(steps) when none is
// left or a step was rejected
func CurrentIndex(steps []entity.ApprovalStep) int {
	for i, s := range steps {
		if s.Status == entity.StepStatusRejected {
			return len(steps)
		}
		if s.Status == entity.StepStatusPending {
			return i
		}
	}
	return len(steps)
}

// Start positions a freshly built workflow on its first pending step and opens that step's
// SLA window at now
func Start(wf *entity.ApprovalWorkflow, now time.Time) {
	refresh(wf, now)
}

// Resolve applies decision to step stepIndex of wf in place. On error wf is not modified,
// so callers may pass the stored workflow or a clone.
//
// A step with an unknown status anywhere in the chain fails with *InvalidStepStatusError.
// A step that is not pending fails with *AlreadyResolvedError; any other step than the
// current one fails with *NotCurrentStepError. Approval advances to the next pending step
// and opens its SLA window; rejection skips every remaining step and ends the workflow.
func Resolve(wf *entity.ApprovalWorkflow, stepIndex int, decision entity.Decision, approverID, comment string, now time.Time) error {
	if !decision.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	if err := CheckSteps(wf); err != nil {
		return err
	}

	if stepIndex >= 0 && stepIndex < len(wf.Steps) && wf.Steps[stepIndex].Status != entity.StepStatusPending {
		return &AlreadyResolvedError{
			WorkflowID: wf.ID,
			StepIndex:  stepIndex,
			Status:     wf.Steps[stepIndex].Status,
		}
	}
	if wf.IsTerminal() || stepIndex != wf.CurrentStepIndex {
		return &NotCurrentStepError{
			WorkflowID:       wf.ID,
			StepIndex:        stepIndex,
			CurrentStepIndex: wf.CurrentStepIndex,
		}
	}

	trigger := TriggerApprove
	if decision == entity.DecisionRejected {
		trigger = TriggerReject
	}

	m := NewStepMachine(wf.Steps[stepIndex].Status)
	if err := m.Fire(trigger); err != nil {
		return err
	}

	resolvedAt := now
	step := &wf.Steps[stepIndex]
	step.Status = m.State()
	step.ApproverID = approverID
	step.Comment = comment
	step.ResolvedAt = &resolvedAt

	if decision == entity.DecisionRejected {
		for i := stepIndex + 1; i < len(wf.Steps); i++ {
			skip(&wf.Steps[i], now, "skipped after rejection")
		}
	}

	refresh(wf, now)
	return nil
}

func skip(step *entity.ApprovalStep, now time.Time, reason string) {
	m := NewStepMachine(step.Status)
	if !m.CanFire(TriggerSkip) {
		return
	}
	_ = m.Fire(TriggerSkip)

	skippedAt := now
	step.Status = m.State()
	step.ResolvedAt = &skippedAt
	if step.Comment == "" {
		step.Comment = reason
	}
}

// refresh re-derives the index and status and opens the SLA window of the new current step
func refresh(wf *entity.ApprovalWorkflow, now time.Time) {
	wf.CurrentStepIndex = CurrentIndex(wf.Steps)
	wf.Status = DeriveStatus(wf.Steps)
	wf.UpdatedAt = now

	if wf.IsTerminal() {
		return
	}
	step := &wf.Steps[wf.CurrentStepIndex]
	if step.DueAt == nil {
		due := now.Add(time.Duration(step.SlaHours) * time.Hour)
		step.DueAt = &due
	}
}

// EvaluateSla classifies the current step's elapsed time at now. Warning starts at 75% of
// the step's SLA, overdue at 100%. Terminal workflows are always on time. The returned
// step is the one evaluated.
func EvaluateSla(wf *entity.ApprovalWorkflow, now time.Time) (entity.SlaState, entity.ApprovalStep, bool) {
	if wf.IsTerminal() {
		return entity.SlaOnTime, entity.ApprovalStep{}, false
	}
	step, ok := wf.CurrentStep()
	if !ok {
		return entity.SlaOnTime, entity.ApprovalStep{}, false
	}
	started, ok := step.StartedAt()
	if !ok || step.SlaHours <= 0 {
		return entity.SlaOnTime, step, true
	}

	elapsed := now.Sub(started)
	window := time.Duration(step.SlaHours) * time.Hour

	switch {
	case elapsed >= window:
		return entity.SlaOverdue, step, true
	case elapsed*4 >= window*3:
		return entity.SlaWarning, step, true
	default:
		return entity.SlaOnTime, step, true
	}
}
