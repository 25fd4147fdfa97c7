package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StepStatus is the status of a single approval step
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusApproved StepStatus = "approved"
	StepStatusRejected StepStatus = "rejected"
	StepStatusSkipped  StepStatus = "skipped"
)

// IsValid returns true if the status is one of the defined constants
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPending, StepStatusApproved, StepStatusRejected, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of the step status
func (s StepStatus) String() string {
	return string(s)
}

// Decision is an approver's verdict on a step
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// IsValid returns true if the decision is one of the defined constants
func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// SlaState is the advisory timeliness of the current step
type SlaState string

const (
	SlaOnTime  SlaState = "on_time"
	SlaWarning SlaState = "warning"
	SlaOverdue SlaState = "overdue"
)

// ApprovalStep is one role's sign-off in a workflow
type ApprovalStep struct {
	Role       string     `json:"role"`
	ApproverID string     `json:"approver_id,omitempty"`
	Status     StepStatus `json:"status"`
	SlaHours   int        `json:"sla_hours"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Comment    string     `json:"comment,omitempty"`
}

// StartedAt returns when the step became current, derived from its deadline
func (s ApprovalStep) StartedAt() (time.Time, bool) {
	if s.DueAt == nil {
		return time.Time{}, false
	}
	return s.DueAt.Add(-time.Duration(s.SlaHours) * time.Hour), true
}

// ApprovalWorkflow drives one submitted expense through its ordered steps.
// CurrentStepIndex points at the first pending step, or equals len(Steps) once terminal.
type ApprovalWorkflow struct {
	ID               string          `json:"id"`
	ExpenseID        string          `json:"expense_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Steps            []ApprovalStep  `json:"steps"`
	CurrentStepIndex int             `json:"current_step_index"`
	Status           ApprovalStatus  `json:"status"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the workflow has been approved or rejected
func (w *ApprovalWorkflow) IsTerminal() bool {
	return w.Status.IsTerminal()
}

// CurrentStep returns the pending step the workflow is waiting on
func (w *ApprovalWorkflow) CurrentStep() (ApprovalStep, bool) {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Steps) {
		return ApprovalStep{}, false
	}
	return w.Steps[w.CurrentStepIndex], true
}

// Clone returns a deep copy so a transition can be computed without touching the original
func (w *ApprovalWorkflow) Clone() *ApprovalWorkflow {
	c := *w
	c.Steps = make([]ApprovalStep, len(w.Steps))
	for i, s := range w.Steps {
		c.Steps[i] = s
		if s.DueAt != nil {
			due := *s.DueAt
			c.Steps[i].DueAt = &due
		}
		if s.ResolvedAt != nil {
			resolved := *s.ResolvedAt
			c.Steps[i].ResolvedAt = &resolved
		}
	}
	return &c
}
