package workflow

import (
	"fmt"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
)

// Trigger is an action applied to a single approval step
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerSkip    Trigger = "SKIP"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// Builder collects the permitted transitions of a step machine
type Builder struct {
	transitions map[entity.StepStatus]map[Trigger]entity.StepStatus
}

// StateConfiguration configures the transitions leaving one status
type StateConfiguration struct {
	builder *Builder
	from    entity.StepStatus
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[entity.StepStatus]map[Trigger]entity.StepStatus)}
}

// Configure returns the configuration for transitions leaving status
func (b *Builder) Configure(status entity.StepStatus) *StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid step status: %s", status))
	}
	if _, ok := b.transitions[status]; !ok {
		b.transitions[status] = make(map[Trigger]entity.StepStatus)
	}
	return &StateConfiguration{builder: b, from: status}
}

// Permit allows trigger to move the step to status to
func (c *StateConfiguration) Permit(trigger Trigger, to entity.StepStatus) *StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	c.builder.transitions[c.from][trigger] = to
	return c
}

// Build creates a machine starting in initial. The transition table is shared read-only.
func (b *Builder) Build(initial entity.StepStatus) *StepMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}
	return &StepMachine{current: initial, transitions: b.transitions}
}

// StepMachine tracks the status of one approval step and validates transitions
type StepMachine struct {
	current     entity.StepStatus
	transitions map[entity.StepStatus]map[Trigger]entity.StepStatus
}

// State returns the current status
func (m *StepMachine) State() entity.StepStatus {
	return m.current
}

// CanFire returns true if trigger is permitted from the current status
func (m *StepMachine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.current][trigger]
	return ok
}

// Fire applies trigger, leaving the status unchanged when it is not permitted
func (m *StepMachine) Fire(trigger Trigger) error {
	to, ok := m.transitions[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

var stepMachine = func() *Builder {
	b := NewBuilder()

	// Only a pending step moves; approved, rejected and skipped are final.
	b.Configure(entity.StepStatusPending).
		Permit(TriggerApprove, entity.StepStatusApproved).
		Permit(TriggerReject, entity.StepStatusRejected).
		Permit(TriggerSkip, entity.StepStatusSkipped)

	b.Configure(entity.StepStatusApproved)
	b.Configure(entity.StepStatusRejected)
	b.Configure(entity.StepStatusSkipped)

	return b
}()

// NewStepMachine returns the approval-step machine positioned at status
func NewStepMachine(status entity.StepStatus) *StepMachine {
	return stepMachine.Build(status)
}
