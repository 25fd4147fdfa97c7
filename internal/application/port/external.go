package port

//go:generate mockgen -destination=mocks/mock_external.go -package=mocks -source=external.go

import (
	"context"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ExchangeRateProvider returns the multiplier converting one unit of from into to on a date
type ExchangeRateProvider interface {
	GetExchangeRate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error)
}

// RecognizedFields is what a receipt recognizer could read from an image
type RecognizedFields struct {
	Merchant    string
	Description string
	Category    entity.Category
	Amount      decimal.Decimal
	Currency    string
	Date        time.Time
	Confidence  float64
}

// ReceiptRecognizer extracts expense fields from a receipt image or PDF.
// It returns nil fields without error when nothing usable was recognized.
type ReceiptRecognizer interface {
	RecognizeReceipt(ctx context.Context, image []byte, mimeType string) (*RecognizedFields, error)
}

// Escalation describes an overdue approval step
type Escalation struct {
	WorkflowID string
	ExpenseID  string
	StepIndex  int
	Role       string
	ApproverID string
	EscalateTo string
	DueAt      time.Time
	Amount     decimal.Decimal
	Currency   string
}

// EscalationNotifier delivers an escalation to the next role up
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, esc Escalation) error
}
