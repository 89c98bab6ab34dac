package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smartorder/smartorder/internal/catalog/domain"
	"github.com/smartorder/smartorder/internal/devicetoken"
	discountdomain "github.com/smartorder/smartorder/internal/discount/domain"
	orderdomain "github.com/smartorder/smartorder/internal/order/domain"
	paymentdomain "github.com/smartorder/smartorder/internal/payment/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if field, ok := validationField(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Field: field, Code: err.Error(), Message: err.Error()}},
		}
	}

	var stockErr *catalogdomain.InsufficientStockError
	if errors.As(err, &stockErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_stock",
			Message: stockErr.Error(),
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, orderdomain.ErrPossibleDuplicate):
		return http.StatusConflict, errorPayload{
			Type:    "possible_duplicate",
			Message: "an identical order was just submitted, wait a moment before retrying",
		}
	case errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, orderdomain.ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "invalid_signature",
			Message: "invalid signature",
		}
	case errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_payload",
			Message: "invalid payload",
		}
	case errors.Is(err, paymentdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment gateway unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// validationField maps the typed business errors onto the field that caused
// them, for structured 400 responses.
func validationField(err error) (string, bool) {
	switch {
	case errors.Is(err, orderdomain.ErrIdempotencyKeyRequired):
		return "idempotency_key", true
	case errors.Is(err, orderdomain.ErrEmptyCart),
		errors.Is(err, orderdomain.ErrInvalidQuantity),
		errors.Is(err, catalogdomain.ErrInvalidQuantity):
		return "items", true
	case errors.Is(err, orderdomain.ErrInvalidPaymentMethod):
		return "payment_method", true
	case errors.Is(err, orderdomain.ErrAmountTooLow):
		return "amount_received", true
	case errors.Is(err, catalogdomain.ErrProductClosed):
		return "items", true
	case errors.Is(err, discountdomain.ErrInactive),
		errors.Is(err, discountdomain.ErrOutOfWindow),
		errors.Is(err, discountdomain.ErrBelowMinimum),
		errors.Is(err, discountdomain.ErrAlreadyUsed),
		errors.Is(err, discountdomain.ErrCodeRequired):
		return "discount_code", true
	case errors.Is(err, ErrInvalidRequest):
		return "request", true
	default:
		return "", false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, catalogdomain.ErrProductNotFound),
		errors.Is(err, discountdomain.ErrNotFound),
		errors.Is(err, devicetoken.ErrTokenNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
