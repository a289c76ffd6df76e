package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bvabank/backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	Name  string `validate:"required,min=2"`
	Email string `validate:"required,email"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&TestStruct{Name: "John Doe", Email: "john@example.com"})
		assert.NoError(t, err)
	})

	t.Run("invalid struct keeps field errors", func(t *testing.T) {
		err := vh.ValidateStruct(&TestStruct{Name: "J"})
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrValidation)

		var validationErrors validator.ValidationErrors
		require.True(t, errors.As(err, &validationErrors))
		assert.Len(t, validationErrors, 2)
	})
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"0.01", true},
		{"40", true},
		{"1000000.50", true},
		{"0", false},
		{"-1", false},
		{"0.001", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := validateAmount(decimal.RequireFromString(tt.amount))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, models.ErrValidation)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: amount must be greater than zero", models.ErrValidation), http.StatusBadRequest},
		{models.ErrAlreadyReviewed, http.StatusBadRequest},
		{fmt.Errorf("%w: user acc-1", models.ErrNotFound), http.StatusNotFound},
		{models.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{models.ErrUnauthorized, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: commit: connection reset", models.ErrStore), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError(t *testing.T) {
	t.Run("domain message without sentinel prefix", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("%w: balance 10.00 is less than 20.00", models.ErrInsufficientFunds), false)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "balance 10.00 is less than 20.00", resp.Error)
	})

	t.Run("validation details", func(t *testing.T) {
		err := NewValidationHelper().ValidateStruct(&TestStruct{Name: "John Doe", Email: "nope"})
		w := httptest.NewRecorder()
		WriteError(w, err, false)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "Email")
	})

	t.Run("store failures stay opaque for users", func(t *testing.T) {
		err := fmt.Errorf("%w: insert transaction: disk full", models.ErrStore)

		w := httptest.NewRecorder()
		WriteError(w, err, false)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "disk full")

		w = httptest.NewRecorder()
		WriteError(w, err, true)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details["cause"], "disk full")
	})
}
