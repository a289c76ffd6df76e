package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Manager is the account manager assigned to a user
type Manager struct {
	Name  string `json:"name" example:"Ada Obi"`
	Email string `json:"email" example:"ada@bvabank.com"`
}

// Account represents a user's banking record
type Account struct {
	ID             string          `json:"id" db:"id" example:"0b6f1c9e-5d7a-4f3b-9d57-1f0e3f1b2c44"`
	Name           string          `json:"name" db:"name" example:"John Doe"`
	Email          string          `json:"email" db:"email" example:"user@example.com"`
	PasswordHash   string          `json:"-" db:"password_hash"`
	AccountNumber  string          `json:"accountNumber" db:"account_number" example:"20481937465"`
	Balance        decimal.Decimal `json:"balance" db:"balance" swaggertype:"string" example:"100.00"`
	IsBlocked      bool            `json:"isBlocked" db:"is_blocked"`
	AccountManager *Manager        `json:"accountManager"`
	Version        int             `json:"-" db:"version"` // for optimistic locking
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
	DeletedAt      *time.Time      `json:"deletedAt,omitempty" db:"deleted_at"`
}

// IsDeleted reports whether the account was removed by an administrator.
func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}
