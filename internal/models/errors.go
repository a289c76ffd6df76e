package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrStore             = errors.New("store failure")
	ErrRateLimited       = errors.New("too many attempts")

	// ErrAlreadyReviewed is returned when a status-bearing entry is reviewed a second time.
	ErrAlreadyReviewed = fmt.Errorf("%w: transaction already reviewed", ErrValidation)
)
