package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the lifecycle status shared by expense records and approval workflows.
// Workflows only ever hold the last three values.
type ApprovalStatus string

const (
	ApprovalStatusDraft    ApprovalStatus = "draft"
	ApprovalStatusInReview ApprovalStatus = "in_review"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// IsValid returns true if the status is one of the defined constants
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusDraft, ApprovalStatusInReview, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for approved and rejected
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// String returns the string representation of the status
func (s ApprovalStatus) String() string {
	return string(s)
}

// Category classifies an expense record
type Category string

const (
	CategoryPerDiem       Category = "per_diem"
	CategoryMileage       Category = "mileage"
	CategoryAccommodation Category = "accommodation"
	CategoryTransport     Category = "transport"
	CategoryMeal          Category = "meal"
	CategoryOther         Category = "other"
)

// IsValid returns true if the category is one of the defined constants
func (c Category) IsValid() bool {
	switch c {
	case CategoryPerDiem, CategoryMileage, CategoryAccommodation, CategoryTransport, CategoryMeal, CategoryOther:
		return true
	default:
		return false
	}
}

// ExpenseRecord is a single reimbursable amount. Amount and Currency are always in the
// reporting currency; when the expense was entered in another currency the Original*
// fields and ExchangeRate keep the source values. Version is zero until the record is first
// stored and grows with every write.
type ExpenseRecord struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	Description      string           `json:"description"`
	Category         Category         `json:"category"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	ExpenseDate      time.Time        `json:"expense_date"`
	MileageKm        *decimal.Decimal `json:"mileage_km,omitempty"`
	VehicleType      string           `json:"vehicle_type,omitempty"`
	OriginalAmount   *decimal.Decimal `json:"original_amount,omitempty"`
	OriginalCurrency string           `json:"original_currency,omitempty"`
	ExchangeRate     *decimal.Decimal `json:"exchange_rate,omitempty"`
	ReceiptPath      string           `json:"receipt_path,omitempty"`
	ApprovalStatus   ApprovalStatus   `json:"approval_status"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsDraft reports whether the record can still be edited or deleted
func (e *ExpenseRecord) IsDraft() bool {
	return e.ApprovalStatus == ApprovalStatusDraft
}
