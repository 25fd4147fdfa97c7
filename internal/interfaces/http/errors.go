package http

import (
	"errors"
	"net/http"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/application/service"
	"github.com/garyjia/travel-reimbursement/internal/application/workflow"
	"github.com/garyjia/travel-reimbursement/internal/domain/allowance"
	"github.com/garyjia/travel-reimbursement/internal/domain/currency"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	domainwf "github.com/garyjia/travel-reimbursement/internal/domain/workflow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// statusOf maps application errors onto HTTP status codes
func statusOf(err error) int {
	var (
		rateNotFound     *rate.NotFoundError
		badTrip          *allowance.InvalidTripSpanError
		badDistance      *allowance.InvalidDistanceError
		badVehicle       *allowance.UnknownVehicleTypeError
		alreadySubmitted *domainwf.AlreadySubmittedError
		notCurrent       *domainwf.NotCurrentStepError
		alreadyResolved  *domainwf.AlreadyResolvedError
	)

	switch {
	case errors.Is(err, port.ErrNotFound), errors.As(err, &rateNotFound):
		return http.StatusNotFound
	case errors.As(err, &alreadySubmitted), errors.As(err, &notCurrent), errors.As(err, &alreadyResolved),
		errors.Is(err, service.ErrNotDraft), errors.Is(err, port.ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &badTrip), errors.As(err, &badDistance), errors.As(err, &badVehicle),
		errors.Is(err, rate.ErrInvalidRate), errors.Is(err, currency.ErrInvalidRate), errors.Is(err, currency.ErrInvalidCode),
		errors.Is(err, domainwf.ErrInvalidDecision), errors.Is(err, workflow.ErrCurrencyMismatch),
		errors.Is(err, service.ErrInvalidExpense), errors.Is(err, service.ErrReceiptUnrecognized),
		errors.Is(err, service.ErrNoExchangeRate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrRecognizerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			fail(c, status, "internal error")
			return
		}
	}
	fail(c, status, err.Error())
}
