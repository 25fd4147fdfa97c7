package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowSubmitted Type = "workflow.submitted"
	TypeStepResolved      Type = "workflow.step_resolved"
	TypeWorkflowApproved  Type = "workflow.approved"
	TypeWorkflowRejected  Type = "workflow.rejected"
	TypeSlaBreached       Type = "workflow.sla_breached"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowSubmitted,
		TypeStepResolved,
		TypeWorkflowApproved,
		TypeWorkflowRejected,
		TypeSlaBreached:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event closes a workflow
func (t Type) IsTerminal() bool {
	return t == TypeWorkflowApproved || t == TypeWorkflowRejected
}
