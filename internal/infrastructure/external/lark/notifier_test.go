package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	idType, receiver, msgType, content string
}

type fakeSender struct {
	err  error
	sent []sentMessage
}

func (f *fakeSender) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{receiveIDType, receiveID, msgType, content})
	return "om_1", nil
}

func escalation(to string) port.Escalation {
	return port.Escalation{
		WorkflowID: "wf-1",
		ExpenseID:  "exp-1",
		StepIndex:  1,
		Role:       "finance",
		EscalateTo: to,
		DueAt:      time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC),
		Amount:     decimal.RequireFromString("980.00"),
		Currency:   "EUR",
	}
}

func TestNotifier_SendsToRecipient(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifierWithSender(sender, Config{
		Recipients: map[string]string{"Director": "ou_director"},
	}, zap.NewNop())

	require.NoError(t, n.NotifyEscalation(context.Background(), escalation("director")))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "open_id", msg.idType)
	assert.Equal(t, "ou_director", msg.receiver)
	assert.Equal(t, "text", msg.msgType)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg.content), &body))
	assert.Contains(t, body["text"], "Approval overdue: exp-1 step 2 (finance)")
	assert.Contains(t, body["text"], "980.00 EUR")
}

func TestNotifier_FallbackChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifierWithSender(sender, Config{ReceiveIDType: "email", FallbackChat: "oc_travel"}, zap.NewNop())

	require.NoError(t, n.NotifyEscalation(context.Background(), escalation("director")))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "chat_id", sender.sent[0].idType)
	assert.Equal(t, "oc_travel", sender.sent[0].receiver)
}

func TestNotifier_Errors(t *testing.T) {
	n := NewNotifierWithSender(&fakeSender{}, Config{}, zap.NewNop())
	assert.Error(t, n.NotifyEscalation(context.Background(), escalation("director")))

	boom := errors.New("token expired")
	n = NewNotifierWithSender(&fakeSender{err: boom}, Config{FallbackChat: "oc_travel"}, zap.NewNop())
	assert.ErrorIs(t, n.NotifyEscalation(context.Background(), escalation("director")), boom)
}
