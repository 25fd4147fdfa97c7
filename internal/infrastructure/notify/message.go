// Package notify renders escalation messages and provides the logging notifier
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/currency"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Message is a rendered escalation
type Message struct {
	Subject string
	Body    string
}

// Render formats an escalation with the number conventions of tag
func Render(esc port.Escalation, tag language.Tag) Message {
	subject := fmt.Sprintf("Approval overdue: %s step %d (%s)", esc.ExpenseID, esc.StepIndex+1, esc.Role)

	var b strings.Builder
	fmt.Fprintf(&b, "The %s approval of expense %s is overdue.\n", esc.Role, esc.ExpenseID)
	fmt.Fprintf(&b, "Amount: %s\n", currency.Format(tag, esc.Amount, esc.Currency))
	fmt.Fprintf(&b, "Due: %s\n", esc.DueAt.UTC().Format(time.RFC3339))
	if esc.ApproverID != "" {
		fmt.Fprintf(&b, "Assigned approver: %s\n", esc.ApproverID)
	}
	if esc.EscalateTo != "" && !strings.EqualFold(esc.EscalateTo, esc.Role) {
		fmt.Fprintf(&b, "Escalated to: %s\n", esc.EscalateTo)
	}
	fmt.Fprintf(&b, "Workflow: %s", esc.WorkflowID)

	return Message{Subject: subject, Body: b.String()}
}

// LogNotifier records escalations in the service log. It is the fallback when no chat
// or mail channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyEscalation implements port.EscalationNotifier
func (n *LogNotifier) NotifyEscalation(ctx context.Context, esc port.Escalation) error {
	n.logger.Warn("Approval step escalated",
		zap.String("workflow_id", esc.WorkflowID),
		zap.String("expense_id", esc.ExpenseID),
		zap.Int("step_index", esc.StepIndex),
		zap.String("role", esc.Role),
		zap.String("escalate_to", esc.EscalateTo),
		zap.Time("due_at", esc.DueAt),
		zap.String("amount", esc.Amount.String()),
		zap.String("currency", esc.Currency))
	return nil
}

var _ port.EscalationNotifier = (*LogNotifier)(nil)
