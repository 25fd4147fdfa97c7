package workflow

import (
	"errors"
	"fmt"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
)

var (
	// ErrInvalidTransition is returned when a trigger is not permitted from a step's status
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrInvalidDecision is returned for a decision other than approved or rejected
	ErrInvalidDecision = errors.New("invalid decision")
)

// AlreadySubmittedError is returned when an expense already has a workflow that is not
// terminal, or is no longer a draft
type AlreadySubmittedError struct {
	ExpenseID  string
	WorkflowID string
	Status     entity.ApprovalStatus
}

func (e *AlreadySubmittedError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("expense %s already submitted (workflow %s, status %s)", e.ExpenseID, e.WorkflowID, e.Status)
	}
	return fmt.Sprintf("expense %s already submitted (status %s)", e.ExpenseID, e.Status)
}

// NotCurrentStepError is returned when a decision targets a step other than the one the
// workflow is waiting on
type NotCurrentStepError struct {
	WorkflowID       string
	StepIndex        int
	CurrentStepIndex int
}

func (e *NotCurrentStepError) Error() string {
	return fmt.Sprintf("workflow %s: step %d is not the current step (current %d)", e.WorkflowID, e.StepIndex, e.CurrentStepIndex)
}

// AlreadyResolvedError is returned when a decision targets a step that is no longer pending
type AlreadyResolvedError struct {
	WorkflowID string
	StepIndex  int
	Status     entity.StepStatus
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("workflow %s: step %d already resolved as %s", e.WorkflowID, e.StepIndex, e.Status)
}

// InvalidStepStatusError is returned for a stored step whose status is not a known value
type InvalidStepStatusError struct {
	WorkflowID string
	StepIndex  int
	Status     entity.StepStatus
}

func (e *InvalidStepStatusError) Error() string {
	return fmt.Sprintf("workflow %s: step %d has unknown status %q", e.WorkflowID, e.StepIndex, e.Status)
}

// CheckSteps returns an *InvalidStepStatusError for the first step with an unknown status
func CheckSteps(wf *entity.ApprovalWorkflow) error {
	for i, s := range wf.Steps {
		if !s.Status.IsValid() {
			return &InvalidStepStatusError{WorkflowID: wf.ID, StepIndex: i, Status: s.Status}
		}
	}
	return nil
}
