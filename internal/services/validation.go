package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bvabank/backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and wraps failures as ErrValidation
func (vh *ValidationHelper) ValidateStruct(s any) error {
	if err := vh.validator.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", models.ErrValidation, err)
	}
	return nil
}

// maxMoney is the first value that no longer fits the NUMERIC(18,2) money columns.
var maxMoney = decimal.New(1, 16)

// validateAmount enforces a strictly positive amount with at most two decimal places.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", models.ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount must have at most two decimal places", models.ErrValidation)
	}
	if amount.GreaterThanOrEqual(maxMoney) {
		return fmt.Errorf("%w: amount must be less than %s", models.ErrValidation, maxMoney.String())
	}
	return nil
}

// StatusFor maps a domain error onto its HTTP status class.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// WriteError sends the status class and message for err. Internal failures stay opaque
// unless verbose is set, which is reserved for administrator responses.
func WriteError(w http.ResponseWriter, err error, verbose bool) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		if verbose {
			SendErrorResponse(w, "An Internal Error Occurred", status, nil, err.Error())
			return
		}
		SendErrorResponse(w, "An Internal Error Occurred", status, nil, "")
		return
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		SendErrorResponse(w, "Validation failed", status, validationErrs, "")
		return
	}

	SendErrorResponse(w, message(err), status, nil, "")
}

// message drops the sentinel prefix, leaving e.g. "amount must be greater than zero".
func message(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{models.ErrValidation, models.ErrNotFound, models.ErrInsufficientFunds,
		models.ErrUnauthorized, models.ErrForbidden, models.ErrRateLimited} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}
	if detail != "" {
		if errorResp.Details == nil {
			errorResp.Details = make(map[string]string)
		}
		errorResp.Details["cause"] = detail
	}

	json.NewEncoder(w).Encode(errorResp)
}
