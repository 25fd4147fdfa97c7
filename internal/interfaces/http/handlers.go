package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/application/service"
	"github.com/garyjia/travel-reimbursement/internal/domain/allowance"
	"github.com/garyjia/travel-reimbursement/internal/domain/currency"
	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/garyjia/travel-reimbursement/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var receiptMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

type handlers struct {
	deps           Dependencies
	maxUploadBytes int64
	logger         *zap.Logger
}

func newHandlers(deps Dependencies, maxUploadBytes int64, logger *zap.Logger) *handlers {
	return &handlers{deps: deps, maxUploadBytes: maxUploadBytes, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (h *handlers) healthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// TripRequest is the trip part of per-diem requests
type TripRequest struct {
	CountryCode           string                   `json:"country_code" binding:"required"`
	City                  string                   `json:"city"`
	StartDate             string                   `json:"start_date" binding:"required"`
	EndDate               string                   `json:"end_date" binding:"required"`
	Deductions            allowance.MealDeductions `json:"deductions"`
	AccommodationProvided bool                     `json:"accommodation_provided"`
}

func (r TripRequest) span() (allowance.TripSpan, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return allowance.TripSpan{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return allowance.TripSpan{}, err
	}
	return allowance.TripSpan{StartDate: start, EndDate: end}, nil
}

// PerDiemQuoteResponse adds the cent-rounded total to the exact result
type PerDiemQuoteResponse struct {
	*allowance.PerDiemResult
	RoundedTotal decimal.Decimal `json:"rounded_total"`
}

func (h *handlers) quotePerDiem(c *gin.Context) {
	var req TripRequest
	if !bind(c, &req) {
		return
	}
	trip, err := req.span()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.deps.Calculator.QuotePerDiem(trip, req.CountryCode, req.City, req.Deductions, req.AccommodationProvided)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, PerDiemQuoteResponse{PerDiemResult: result, RoundedTotal: currency.Round2(result.TotalAmount)})
}

// MileageRequest describes a drive
type MileageRequest struct {
	CountryCode string          `json:"country_code" binding:"required"`
	VehicleType string          `json:"vehicle_type" binding:"required"`
	DistanceKm  decimal.Decimal `json:"distance_km"`
	Date        string          `json:"date" binding:"required"`
}

func (h *handlers) quoteMileage(c *gin.Context) {
	var req MileageRequest
	if !bind(c, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.deps.Calculator.ComputeMileage(req.DistanceKm, req.CountryCode, req.VehicleType, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// NormalizeRequest converts an amount. Without Rate the configured provider is asked for
// the rate effective on Date.
type NormalizeRequest struct {
	Amount decimal.Decimal  `json:"amount"`
	From   string           `json:"from" binding:"required"`
	To     string           `json:"to" binding:"required"`
	Date   string           `json:"date"`
	Rate   *decimal.Decimal `json:"rate"`
}

// NormalizeResponse is the converted amount and the rate applied
type NormalizeResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
}

func (h *handlers) normalize(c *gin.Context) {
	var req NormalizeRequest
	if !bind(c, &req) {
		return
	}

	from, err := currency.ParseCode(req.From)
	if err != nil {
		h.writeError(c, err)
		return
	}
	to, err := currency.ParseCode(req.To)
	if err != nil {
		h.writeError(c, err)
		return
	}

	rate := decimal.NewFromInt(1)
	switch {
	case from == to:
	case req.Rate != nil:
		rate = *req.Rate
	default:
		on := time.Now().UTC()
		if req.Date != "" {
			if on, err = parseDate("date", req.Date); err != nil {
				fail(c, http.StatusBadRequest, err.Error())
				return
			}
		}
		rate, err = h.deps.Rates.GetExchangeRate(c.Request.Context(), from, to, on)
		if errors.Is(err, port.ErrNotFound) {
			err = fmt.Errorf("%w: %v", service.ErrNoExchangeRate, err)
		}
		if err != nil {
			h.writeError(c, err)
			return
		}
	}

	amount, err := currency.Normalize(req.Amount, from, to, rate)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, NormalizeResponse{Amount: amount, Currency: to, Rate: rate})
}

// DraftRequest carries a hand-entered expense
type DraftRequest struct {
	OwnerID     string          `json:"owner_id"`
	Description string          `json:"description"`
	Category    entity.Category `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" binding:"required"`
	ExpenseDate string          `json:"expense_date" binding:"required"`
}

func (r DraftRequest) input() (service.DraftInput, error) {
	date, err := parseDate("expense_date", r.ExpenseDate)
	if err != nil {
		return service.DraftInput{}, err
	}
	return service.DraftInput{
		OwnerID:     r.OwnerID,
		Description: r.Description,
		Category:    r.Category,
		Amount:      r.Amount,
		Currency:    r.Currency,
		ExpenseDate: date,
	}, nil
}

func (h *handlers) createDraft(c *gin.Context) {
	var req DraftRequest
	if !bind(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := h.deps.Expenses.CreateDraft(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, expense)
}

func (h *handlers) updateDraft(c *gin.Context) {
	var req DraftRequest
	if !bind(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := h.deps.Expenses.UpdateDraft(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, expense)
}

func (h *handlers) deleteDraft(c *gin.Context) {
	if err := h.deps.Expenses.DeleteDraft(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getExpense(c *gin.Context) {
	expense, err := h.deps.Expenses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, expense)
}

// ListExpensesRequest represents query parameters for listing expenses
type ListExpensesRequest struct {
	OwnerID string `form:"owner_id"`
	Status  string `form:"status"`
	Limit   int    `form:"limit"`
	Offset  int    `form:"offset"`
}

func (h *handlers) listExpenses(c *gin.Context) {
	var req ListExpensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	expenses, err := h.deps.Expenses.List(c.Request.Context(), port.ExpenseFilter{
		OwnerID: req.OwnerID,
		Status:  entity.ApprovalStatus(req.Status),
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if expenses == nil {
		expenses = []*entity.ExpenseRecord{}
	}
	ok(c, http.StatusOK, expenses)
}

// PerDiemDraftRequest creates a per-diem expense from a trip
type PerDiemDraftRequest struct {
	TripRequest
	OwnerID     string `json:"owner_id" binding:"required"`
	Description string `json:"description"`
}

// PerDiemDraftResponse is the stored draft and the computation behind it
type PerDiemDraftResponse struct {
	Expense     *entity.ExpenseRecord    `json:"expense"`
	Computation *allowance.PerDiemResult `json:"computation"`
}

func (h *handlers) createPerDiemDraft(c *gin.Context) {
	var req PerDiemDraftRequest
	if !bind(c, &req) {
		return
	}
	trip, err := req.span()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	expense, result, err := h.deps.Expenses.CreatePerDiemDraft(c.Request.Context(), service.PerDiemDraftInput{
		OwnerID:               req.OwnerID,
		Description:           req.Description,
		CountryCode:           req.CountryCode,
		City:                  req.City,
		Trip:                  trip,
		Deductions:            req.Deductions,
		AccommodationProvided: req.AccommodationProvided,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, PerDiemDraftResponse{Expense: expense, Computation: result})
}

// MileageDraftRequest creates a mileage expense
type MileageDraftRequest struct {
	MileageRequest
	OwnerID     string `json:"owner_id" binding:"required"`
	Description string `json:"description"`
}

// MileageDraftResponse is the stored draft and the computation behind it
type MileageDraftResponse struct {
	Expense     *entity.ExpenseRecord    `json:"expense"`
	Computation *allowance.MileageResult `json:"computation"`
}

func (h *handlers) createMileageDraft(c *gin.Context) {
	var req MileageDraftRequest
	if !bind(c, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	expense, result, err := h.deps.Expenses.CreateMileageDraft(c.Request.Context(), service.MileageDraftInput{
		OwnerID:     req.OwnerID,
		Description: req.Description,
		CountryCode: req.CountryCode,
		VehicleType: req.VehicleType,
		DistanceKm:  req.DistanceKm,
		Date:        date,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, MileageDraftResponse{Expense: expense, Computation: result})
}

// ReceiptDraftResponse is the stored draft and what was read from the receipt
type ReceiptDraftResponse struct {
	Expense    *entity.ExpenseRecord `json:"expense"`
	Merchant   string                `json:"merchant,omitempty"`
	Confidence float64               `json:"confidence"`
}

// createReceiptDraft expects multipart form fields owner_id and file
func (h *handlers) createReceiptDraft(c *gin.Context) {
	ownerID := c.PostForm("owner_id")
	if ownerID == "" {
		fail(c, http.StatusBadRequest, "owner_id is required")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file is required")
		return
	}
	if header.Size > h.maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, "receipt is too large")
		return
	}

	mimeType := strings.ToLower(strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0]))
	if !receiptMimeTypes[mimeType] {
		fail(c, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported receipt type %q", mimeType))
		return
	}

	f, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer f.Close()

	image, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to read upload")
		return
	}

	expense, fields, err := h.deps.Expenses.DraftFromReceipt(c.Request.Context(), service.ReceiptDraftInput{
		OwnerID:  ownerID,
		Image:    image,
		MimeType: mimeType,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, ReceiptDraftResponse{Expense: expense, Merchant: fields.Merchant, Confidence: fields.Confidence})
}

func (h *handlers) submit(c *gin.Context) {
	wf, err := h.deps.Engine.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, wf)
}

func (h *handlers) getWorkflowByExpense(c *gin.Context) {
	wf, err := h.deps.Engine.GetWorkflowByExpense(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

func (h *handlers) getWorkflow(c *gin.Context) {
	wf, err := h.deps.Engine.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

// ResolveRequest is an approver's decision
type ResolveRequest struct {
	Decision   entity.Decision `json:"decision" binding:"required"`
	ApproverID string          `json:"approver_id" binding:"required"`
	Comment    string          `json:"comment"`
}

func (h *handlers) resolveStep(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		fail(c, http.StatusBadRequest, "step index must be an integer")
		return
	}

	var req ResolveRequest
	if !bind(c, &req) {
		return
	}

	wf, err := h.deps.Engine.ResolveStep(c.Request.Context(), c.Param("id"), index, req.Decision, req.ApproverID, req.Comment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, wf)
}

func (h *handlers) checkSla(c *gin.Context) {
	report, err := h.deps.Engine.CheckSlaByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, report)
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseDate(field, value string) (time.Time, error) {
	t, err := utils.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}
