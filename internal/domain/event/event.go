package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and handlers
const (
	KeyStepIndex  = "step_index"
	KeyRole       = "role"
	KeyDecision   = "decision"
	KeyApproverID = "approver_id"
	KeyAmount     = "amount"
	KeyCurrency   = "currency"
	KeyDueAt      = "due_at"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	WorkflowID    string                 `json:"workflow_id"`
	ExpenseID     string                 `json:"expense_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event that starts its own correlation chain
func NewEvent(eventType Type, workflowID, expenseID string, payload map[string]interface{}, at time.Time) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		WorkflowID:    workflowID,
		ExpenseID:     expenseID,
		Payload:       payload,
		Timestamp:     at,
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, workflowID, expenseID string, payload map[string]interface{}, at time.Time, correlationID string) *Event {
	evt := NewEvent(eventType, workflowID, expenseID, payload, at)
	evt.CorrelationID = correlationID
	return evt
}

// WithPayload returns a copy of the event with key set in its payload
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	c := *e
	c.Payload = newPayload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
