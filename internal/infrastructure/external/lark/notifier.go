package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/notify"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Config maps approver roles to Lark receivers
type Config struct {
	AppID     string
	AppSecret string
	// ReceiveIDType is open_id, user_id, email or chat_id
	ReceiveIDType string
	Recipients    map[string]string
	// FallbackChat receives escalations for roles without a recipient
	FallbackChat string
}

// Notifier implements port.EscalationNotifier with text messages
type Notifier struct {
	sender        MessageSender
	receiveIDType string
	recipients    map[string]string
	fallbackChat  string
	logger        *zap.Logger
}

// NewNotifier creates a notifier backed by the Lark SDK
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	return NewNotifierWithSender(NewMessageAPI(cfg.AppID, cfg.AppSecret, logger), cfg, logger)
}

// NewNotifierWithSender creates a notifier over an existing sender
func NewNotifierWithSender(sender MessageSender, cfg Config, logger *zap.Logger) *Notifier {
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "open_id"
	}
	recipients := make(map[string]string, len(cfg.Recipients))
	for role, id := range cfg.Recipients {
		recipients[strings.ToLower(role)] = id
	}
	return &Notifier{
		sender:        sender,
		receiveIDType: idType,
		recipients:    recipients,
		fallbackChat:  cfg.FallbackChat,
		logger:        logger,
	}
}

// NotifyEscalation messages the role the step escalates to. Roles without a configured
// receiver go to the fallback group chat.
func (n *Notifier) NotifyEscalation(ctx context.Context, esc port.Escalation) error {
	idType, receiver := n.receiveIDType, n.recipients[strings.ToLower(esc.EscalateTo)]
	if receiver == "" {
		idType, receiver = "chat_id", n.fallbackChat
	}
	if receiver == "" {
		return fmt.Errorf("no lark receiver for role %s", esc.EscalateTo)
	}

	msg := notify.Render(esc, language.English)
	content, err := json.Marshal(map[string]string{"text": msg.Subject + "\n" + msg.Body})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, idType, receiver, "text", string(content))
	if err != nil {
		return fmt.Errorf("failed to send escalation: %w", err)
	}

	n.logger.Info("Escalation sent to lark",
		zap.String("workflow_id", esc.WorkflowID),
		zap.String("escalate_to", esc.EscalateTo),
		zap.String("message_id", messageID))
	return nil
}

var _ port.EscalationNotifier = (*Notifier)(nil)
