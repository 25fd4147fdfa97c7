// Package mail delivers escalations by SMTP
package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/notify"
	"github.com/go-gomail/gomail"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Config holds SMTP settings and the address of each approver role
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients map[string]string
	Fallback   string
	Locale     string
}

// Dialer sends prepared messages; *gomail.Dialer implements it
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Notifier implements port.EscalationNotifier over SMTP
type Notifier struct {
	dialer     Dialer
	from       string
	recipients map[string]string
	fallback   string
	tag        language.Tag
	logger     *zap.Logger
}

// NewNotifier creates a notifier that dials the configured SMTP server
func NewNotifier(cfg Config, logger *zap.Logger) (*Notifier, error) {
	return NewNotifierWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, logger)
}

// NewNotifierWithDialer creates a notifier over an existing dialer
func NewNotifierWithDialer(d Dialer, cfg Config, logger *zap.Logger) (*Notifier, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("mail sender address is required")
	}

	tag := language.English
	if cfg.Locale != "" {
		parsed, err := language.Parse(cfg.Locale)
		if err != nil {
			return nil, fmt.Errorf("invalid mail locale %q: %w", cfg.Locale, err)
		}
		tag = parsed
	}

	recipients := make(map[string]string, len(cfg.Recipients))
	for role, addr := range cfg.Recipients {
		recipients[strings.ToLower(role)] = addr
	}

	return &Notifier{
		dialer:     d,
		from:       cfg.From,
		recipients: recipients,
		fallback:   cfg.Fallback,
		tag:        tag,
		logger:     logger,
	}, nil
}

// NotifyEscalation mails the role the step escalates to, or the fallback address
func (n *Notifier) NotifyEscalation(ctx context.Context, esc port.Escalation) error {
	to := n.recipients[strings.ToLower(esc.EscalateTo)]
	if to == "" {
		to = n.fallback
	}
	if to == "" {
		return fmt.Errorf("no mail recipient for role %s", esc.EscalateTo)
	}

	msg := notify.Render(esc, n.tag)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := n.dialer.DialAndSend(m); err != nil {
		n.logger.Error("Failed to send escalation mail",
			zap.String("workflow_id", esc.WorkflowID),
			zap.String("to", to),
			zap.Error(err))
		return fmt.Errorf("failed to send escalation mail: %w", err)
	}

	n.logger.Info("Escalation mail sent",
		zap.String("workflow_id", esc.WorkflowID),
		zap.String("to", to))
	return nil
}

var _ port.EscalationNotifier = (*Notifier)(nil)
