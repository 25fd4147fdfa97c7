package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/allowance"
	"github.com/garyjia/travel-reimbursement/internal/domain/currency"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrNotDraft is returned when editing or deleting an expense that was already submitted
	ErrNotDraft = errors.New("expense is not a draft")

	// ErrInvalidExpense is returned for draft input that fails validation
	ErrInvalidExpense = errors.New("invalid expense")

	// ErrReceiptUnrecognized is returned when nothing usable could be read from a receipt
	ErrReceiptUnrecognized = errors.New("receipt could not be recognized")

	// ErrRecognizerUnavailable is returned when receipt ingestion is not configured
	ErrRecognizerUnavailable = errors.New("receipt recognition is not configured")

	// ErrNoExchangeRate is returned when no rate converts the entered currency on the
	// expense date
	ErrNoExchangeRate = errors.New("no exchange rate")
)

// DraftInput carries the user-entered fields of a draft. Amount is in Currency and is
// normalized into the reporting currency on write.
type DraftInput struct {
	OwnerID     string
	Description string
	Category    entity.Category
	Amount      decimal.Decimal
	Currency    string
	ExpenseDate time.Time
}

// PerDiemDraftInput describes a trip to be priced as a per-diem expense
type PerDiemDraftInput struct {
	OwnerID               string
	Description           string
	CountryCode           string
	City                  string
	Trip                  allowance.TripSpan
	Deductions            allowance.MealDeductions
	AccommodationProvided bool
}

// MileageDraftInput describes a drive to be priced as a mileage expense
type MileageDraftInput struct {
	OwnerID     string
	Description string
	CountryCode string
	VehicleType string
	DistanceKm  decimal.Decimal
	Date        time.Time
}

// ReceiptDraftInput is an uploaded receipt image or PDF
type ReceiptDraftInput struct {
	OwnerID  string
	Image    []byte
	MimeType string
}

// ExpenseService manages expense drafts. Submission and approval belong to the approval engine.
type ExpenseService interface {
	CreateDraft(ctx context.Context, in DraftInput) (*entity.ExpenseRecord, error)
	UpdateDraft(ctx context.Context, id string, in DraftInput) (*entity.ExpenseRecord, error)
	DeleteDraft(ctx context.Context, id string) error
	CreatePerDiemDraft(ctx context.Context, in PerDiemDraftInput) (*entity.ExpenseRecord, *allowance.PerDiemResult, error)
	CreateMileageDraft(ctx context.Context, in MileageDraftInput) (*entity.ExpenseRecord, *allowance.MileageResult, error)
	DraftFromReceipt(ctx context.Context, in ReceiptDraftInput) (*entity.ExpenseRecord, *port.RecognizedFields, error)
	Get(ctx context.Context, id string) (*entity.ExpenseRecord, error)
	List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.ExpenseRecord, error)
}

type expenseServiceImpl struct {
	repo       port.ExpenseRepository
	calculator *allowance.Calculator
	rates      port.ExchangeRateProvider
	reporting  string
	logger     *zap.Logger

	recognizer port.ReceiptRecognizer
	storage    port.FileStorage
	now        func() time.Time
}

// ExpenseOption configures the expense service
type ExpenseOption func(*expenseServiceImpl)

// WithReceiptRecognizer enables DraftFromReceipt
func WithReceiptRecognizer(r port.ReceiptRecognizer) ExpenseOption {
	return func(s *expenseServiceImpl) {
		s.recognizer = r
	}
}

// WithReceiptStorage archives uploaded receipts
func WithReceiptStorage(fs port.FileStorage) ExpenseOption {
	return func(s *expenseServiceImpl) {
		s.storage = fs
	}
}

// WithNow replaces time.Now
func WithNow(now func() time.Time) ExpenseOption {
	return func(s *expenseServiceImpl) {
		s.now = now
	}
}

// NewExpenseService creates a new ExpenseService that records amounts in reportingCurrency
func NewExpenseService(
	repo port.ExpenseRepository,
	calculator *allowance.Calculator,
	rates port.ExchangeRateProvider,
	reportingCurrency string,
	logger *zap.Logger,
	opts ...ExpenseOption,
) (ExpenseService, error) {
	code, err := currency.ParseCode(reportingCurrency)
	if err != nil {
		return nil, fmt.Errorf("reporting currency: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &expenseServiceImpl{
		repo:       repo,
		calculator: calculator,
		rates:      rates,
		reporting:  code,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *expenseServiceImpl) CreateDraft(ctx context.Context, in DraftInput) (*entity.ExpenseRecord, error) {
	if err := validateDraft(&in); err != nil {
		return nil, err
	}

	now := s.now()
	expense := &entity.ExpenseRecord{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		Description:    in.Description,
		Category:       in.Category,
		ExpenseDate:    in.ExpenseDate,
		ApprovalStatus: entity.ApprovalStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.price(ctx, expense, in.Amount, in.Currency); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to save expense: %w", err)
	}

	s.logger.Info("Draft created",
		zap.String("expense_id", expense.ID),
		zap.String("category", string(expense.Category)),
		zap.String("amount", expense.Amount.StringFixed(2)),
		zap.String("currency", expense.Currency))
	return expense, nil
}

func (s *expenseServiceImpl) UpdateDraft(ctx context.Context, id string, in DraftInput) (*entity.ExpenseRecord, error) {
	expense, err := s.loadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.OwnerID == "" {
		in.OwnerID = expense.OwnerID
	}
	if err := validateDraft(&in); err != nil {
		return nil, err
	}

	expense.OwnerID = in.OwnerID
	expense.Description = in.Description
	expense.Category = in.Category
	expense.ExpenseDate = in.ExpenseDate
	expense.UpdatedAt = s.now()

	// calculator-derived fields no longer describe a hand-edited amount
	if in.Category != entity.CategoryMileage {
		expense.MileageKm = nil
		expense.VehicleType = ""
	}
	if err := s.price(ctx, expense, in.Amount, in.Currency); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, expense); err != nil {
		return nil, s.writeFailed(ctx, id, "save", err)
	}
	return expense, nil
}

func (s *expenseServiceImpl) DeleteDraft(ctx context.Context, id string) error {
	expense, err := s.loadDraft(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.writeFailed(ctx, id, "delete", err)
	}
	if expense.ReceiptPath != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, expense.ReceiptPath); err != nil {
			s.logger.Warn("Failed to delete archived receipt",
				zap.String("expense_id", id),
				zap.String("path", expense.ReceiptPath),
				zap.Error(err))
		}
	}
	return nil
}

func (s *expenseServiceImpl) CreatePerDiemDraft(ctx context.Context, in PerDiemDraftInput) (*entity.ExpenseRecord, *allowance.PerDiemResult, error) {
	result, err := s.calculator.QuotePerDiem(in.Trip, in.CountryCode, in.City, in.Deductions, in.AccommodationProvided)
	if err != nil {
		return nil, nil, err
	}

	description := in.Description
	if description == "" {
		place := strings.ToUpper(in.CountryCode)
		if in.City != "" {
			place = in.City + ", " + place
		}
		description = fmt.Sprintf("Per diem %s (%d days)", place, result.TotalDays)
	}

	expense, err := s.CreateDraft(ctx, DraftInput{
		OwnerID:     in.OwnerID,
		Description: description,
		Category:    entity.CategoryPerDiem,
		Amount:      result.TotalAmount,
		Currency:    result.Currency,
		ExpenseDate: in.Trip.StartDate,
	})
	if err != nil {
		return nil, nil, err
	}
	return expense, result, nil
}

func (s *expenseServiceImpl) CreateMileageDraft(ctx context.Context, in MileageDraftInput) (*entity.ExpenseRecord, *allowance.MileageResult, error) {
	result, err := s.calculator.ComputeMileage(in.DistanceKm, in.CountryCode, in.VehicleType, in.Date)
	if err != nil {
		return nil, nil, err
	}

	description := in.Description
	if description == "" {
		description = fmt.Sprintf("Mileage %s km by %s", result.DistanceKm.String(), result.VehicleType)
	}

	now := s.now()
	distance := result.DistanceKm
	expense := &entity.ExpenseRecord{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		Description:    description,
		Category:       entity.CategoryMileage,
		ExpenseDate:    in.Date,
		MileageKm:      &distance,
		VehicleType:    result.VehicleType.String(),
		ApprovalStatus: entity.ApprovalStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if expense.OwnerID == "" {
		return nil, nil, fmt.Errorf("%w: owner is required", ErrInvalidExpense)
	}
	if err := s.price(ctx, expense, result.TotalAmount, result.Currency); err != nil {
		return nil, nil, err
	}
	if err := s.repo.Save(ctx, expense); err != nil {
		return nil, nil, fmt.Errorf("failed to save expense: %w", err)
	}
	return expense, result, nil
}

func (s *expenseServiceImpl) DraftFromReceipt(ctx context.Context, in ReceiptDraftInput) (*entity.ExpenseRecord, *port.RecognizedFields, error) {
	if s.recognizer == nil {
		return nil, nil, ErrRecognizerUnavailable
	}
	if len(in.Image) == 0 {
		return nil, nil, fmt.Errorf("%w: empty receipt", ErrInvalidExpense)
	}

	fields, err := s.recognizer.RecognizeReceipt(ctx, in.Image, in.MimeType)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to recognize receipt: %w", err)
	}
	if fields == nil || !fields.Amount.IsPositive() || fields.Currency == "" {
		return nil, nil, ErrReceiptUnrecognized
	}

	date := fields.Date
	if date.IsZero() {
		date = s.now()
	}
	category := fields.Category
	if !category.IsValid() {
		category = entity.CategoryOther
	}
	description := fields.Description
	if description == "" {
		description = fields.Merchant
	}

	expense, err := s.CreateDraft(ctx, DraftInput{
		OwnerID:     in.OwnerID,
		Description: description,
		Category:    category,
		Amount:      fields.Amount,
		Currency:    fields.Currency,
		ExpenseDate: date,
	})
	if err != nil {
		return nil, nil, err
	}

	if s.storage != nil {
		path := receiptPath(expense, in.MimeType)
		if err := s.storage.Save(ctx, path, in.Image); err != nil {
			s.logger.Error("Failed to archive receipt",
				zap.String("expense_id", expense.ID),
				zap.Error(err))
			return expense, fields, nil
		}
		expense.ReceiptPath = path
		if err := s.repo.Save(ctx, expense); err != nil {
			return nil, nil, s.writeFailed(ctx, expense.ID, "save", err)
		}
	}
	return expense, fields, nil
}

func (s *expenseServiceImpl) Get(ctx context.Context, id string) (*entity.ExpenseRecord, error) {
	expense, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense %s: %w", id, err)
	}
	return expense, nil
}

func (s *expenseServiceImpl) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.ExpenseRecord, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidExpense, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

func (s *expenseServiceImpl) loadDraft(ctx context.Context, id string) (*entity.ExpenseRecord, error) {
	expense, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense %s: %w", id, err)
	}
	if !expense.IsDraft() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDraft, id, expense.ApprovalStatus)
	}
	return expense, nil
}

// writeFailed turns a version conflict on a draft write into ErrNotDraft when the record
// was submitted in the meantime
func (s *expenseServiceImpl) writeFailed(ctx context.Context, id, op string, err error) error {
	if !errors.Is(err, port.ErrVersionConflict) {
		return fmt.Errorf("failed to %s expense %s: %w", op, id, err)
	}
	current, findErr := s.repo.Find(ctx, id)
	if findErr == nil && !current.IsDraft() {
		return fmt.Errorf("%w: %s is %s", ErrNotDraft, id, current.ApprovalStatus)
	}
	return fmt.Errorf("expense %s changed concurrently: %w", id, err)
}

// price sets Amount and Currency in the reporting currency, keeping the source values when
// a conversion happened. The amount is rounded to cents exactly once.
func (s *expenseServiceImpl) price(ctx context.Context, expense *entity.ExpenseRecord, amount decimal.Decimal, code string) error {
	from, err := currency.ParseCode(code)
	if err != nil {
		return err
	}

	expense.OriginalAmount = nil
	expense.OriginalCurrency = ""
	expense.ExchangeRate = nil

	if from == s.reporting {
		expense.Amount = currency.Round2(amount)
		expense.Currency = s.reporting
		return nil
	}

	rate, err := s.rates.GetExchangeRate(ctx, from, s.reporting, expense.ExpenseDate)
	if errors.Is(err, port.ErrNotFound) {
		return fmt.Errorf("%w: %s->%s on %s", ErrNoExchangeRate, from, s.reporting,
			expense.ExpenseDate.Format(time.DateOnly))
	}
	if err != nil {
		return fmt.Errorf("failed to get %s->%s rate: %w", from, s.reporting, err)
	}
	converted, err := currency.Normalize(amount, from, s.reporting, rate)
	if err != nil {
		return err
	}

	original := currency.Round2(amount)
	expense.Amount = converted
	expense.Currency = s.reporting
	expense.OriginalAmount = &original
	expense.OriginalCurrency = from
	expense.ExchangeRate = &rate
	return nil
}

func validateDraft(in *DraftInput) error {
	if in.OwnerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidExpense)
	}
	if in.Category == "" {
		in.Category = entity.CategoryOther
	}
	if !in.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidExpense, in.Category)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidExpense)
	}
	if in.ExpenseDate.IsZero() {
		return fmt.Errorf("%w: expense date is required", ErrInvalidExpense)
	}
	return nil
}

func receiptPath(expense *entity.ExpenseRecord, mimeType string) string {
	ext := ".bin"
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	case "application/pdf":
		ext = ".pdf"
	}
	return fmt.Sprintf("receipts/%s/%s%s", expense.CreatedAt.Format("2006-01"), expense.ID, ext)
}
