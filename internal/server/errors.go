package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/stayloop/folio/internal/audit/domain"
	batchdomain "github.com/stayloop/folio/internal/batch/domain"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	recondomain "github.com/stayloop/folio/internal/reconciliation/domain"
	recoverydomain "github.com/stayloop/folio/internal/recovery/domain"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
	staydomain "github.com/stayloop/folio/internal/stay/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
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

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, foliodomain.ErrInvalidBooking),
		errors.Is(err, foliodomain.ErrInvalidType),
		errors.Is(err, foliodomain.ErrInvalidID),
		errors.Is(err, ledgerdomain.ErrInvalidType),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidID),
		errors.Is(err, ledgerdomain.ErrMissingReference),
		errors.Is(err, ledgerdomain.ErrMissingTarget),
		errors.Is(err, ledgerdomain.ErrRebateExceedsCharges),
		errors.Is(err, ledgerdomain.ErrRebateWrongFolio),
		errors.Is(err, ledgerdomain.ErrInvalidRebateMode),
		errors.Is(err, routingdomain.ErrInvalidCategory),
		errors.Is(err, routingdomain.ErrInvalidTarget),
		errors.Is(err, routingdomain.ErrInvalidID),
		errors.Is(err, recondomain.ErrInvalidProvider),
		errors.Is(err, recondomain.ErrInvalidAmount),
		errors.Is(err, recondomain.ErrEmptyBatch),
		errors.Is(err, recondomain.ErrInvalidID),
		errors.Is(err, batchdomain.ErrInvalidID),
		errors.Is(err, batchdomain.ErrInvalidDate),
		errors.Is(err, batchdomain.ErrInvalidBalance),
		errors.Is(err, batchdomain.ErrWrongBatchType),
		errors.Is(err, staydomain.ErrInvalidGuest),
		errors.Is(err, staydomain.ErrInvalidID),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, foliodomain.ErrInvalidTenant),
		errors.Is(err, ledgerdomain.ErrInvalidTenant),
		errors.Is(err, routingdomain.ErrInvalidTenant),
		errors.Is(err, recondomain.ErrInvalidTenant),
		errors.Is(err, batchdomain.ErrInvalidTenant),
		errors.Is(err, staydomain.ErrInvalidTenant),
		errors.Is(err, auditdomain.ErrInvalidTenant),
		errors.Is(err, recoverydomain.ErrInvalidTenant):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, foliodomain.ErrAlreadyExists),
		errors.Is(err, foliodomain.ErrAlreadyClosed),
		errors.Is(err, foliodomain.ErrNotClosed),
		errors.Is(err, ledgerdomain.ErrFolioClosed),
		errors.Is(err, recondomain.ErrNotMatched),
		errors.Is(err, batchdomain.ErrNotOpen),
		errors.Is(err, batchdomain.ErrAlreadyClosed),
		errors.Is(err, staydomain.ErrWrongStatus):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, foliodomain.ErrNotFound),
		errors.Is(err, routingdomain.ErrRuleNotFound),
		errors.Is(err, routingdomain.ErrNoTargetFolio),
		errors.Is(err, recondomain.ErrBatchNotFound),
		errors.Is(err, recondomain.ErrRecordNotFound),
		errors.Is(err, recondomain.ErrTransactionMissing),
		errors.Is(err, batchdomain.ErrNotFound),
		errors.Is(err, staydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
