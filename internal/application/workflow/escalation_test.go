package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/application/port/mocks"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overdueWorkflow() (*entity.ApprovalWorkflow, entity.ApprovalStep) {
	due := start.Add(24 * time.Hour)
	step := entity.ApprovalStep{Role: "Supervisor", Status: entity.StepStatusPending, SlaHours: 24, DueAt: &due}
	wf := &entity.ApprovalWorkflow{
		ID:        "wf-1",
		ExpenseID: "exp-1",
		Amount:    decimal.RequireFromString("250.00"),
		Currency:  "EUR",
		Steps:     []entity.ApprovalStep{step},
		Status:    entity.ApprovalStatusInReview,
	}
	return wf, step
}

func TestEscalationHandler_NotifiesNextRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockEscalationNotifier(ctrl)
	wf, step := overdueWorkflow()

	notifier.EXPECT().
		NotifyEscalation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, esc port.Escalation) error {
			assert.Equal(t, "wf-1", esc.WorkflowID)
			assert.Equal(t, "exp-1", esc.ExpenseID)
			assert.Equal(t, "Supervisor", esc.Role)
			assert.Equal(t, "department_head", esc.EscalateTo)
			assert.Equal(t, start.Add(24*time.Hour), esc.DueAt)
			assert.True(t, esc.Amount.Equal(decimal.NewFromInt(250)))
			return nil
		})

	handler := NewEscalationHandler(EscalationChain{"supervisor": "department_head"}, nil, notifier)
	require.NoError(t, handler(context.Background(), wf, step))
}

func TestEscalationHandler_TopOfChainEscalatesToSelf(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockEscalationNotifier(ctrl)
	wf, step := overdueWorkflow()

	notifier.EXPECT().
		NotifyEscalation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, esc port.Escalation) error {
			assert.Equal(t, "Supervisor", esc.EscalateTo)
			return nil
		})

	handler := NewEscalationHandler(nil, nil, notifier)
	require.NoError(t, handler(context.Background(), wf, step))
}

func TestEscalationHandler_PartialFailureSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := mocks.NewMockEscalationNotifier(ctrl)
	working := mocks.NewMockEscalationNotifier(ctrl)
	wf, step := overdueWorkflow()

	failing.EXPECT().NotifyEscalation(gomock.Any(), gomock.Any()).Return(errors.New("lark unavailable"))
	working.EXPECT().NotifyEscalation(gomock.Any(), gomock.Any()).Return(nil)

	handler := NewEscalationHandler(nil, nil, failing, working)
	assert.NoError(t, handler(context.Background(), wf, step))
}

func TestEscalationHandler_AllFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockEscalationNotifier(ctrl)
	wf, step := overdueWorkflow()
	boom := errors.New("smtp refused")
	notifier.EXPECT().NotifyEscalation(gomock.Any(), gomock.Any()).Return(boom)

	handler := NewEscalationHandler(nil, nil, notifier)
	assert.ErrorIs(t, handler(context.Background(), wf, step), boom)
}

func TestEscalationHandler_NoNotifiers(t *testing.T) {
	wf, step := overdueWorkflow()
	assert.NoError(t, NewEscalationHandler(nil, nil)(context.Background(), wf, step))
}
