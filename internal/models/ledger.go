package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindCredit     Kind = "credit"
	KindDebit      Kind = "debit"
)

// Status is the review lifecycle of a status-bearing entry
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsStatusBearing reports whether entries of this kind carry a review status.
func (k Kind) IsStatusBearing() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// IsNoteBearing reports whether entries of this kind carry a free-text note.
func (k Kind) IsNoteBearing() bool {
	return k == KindCredit || k == KindDebit
}

// Sign returns +1 for kinds that increase the balance and -1 for kinds that decrease it.
func (k Kind) Sign() int64 {
	switch k {
	case KindDeposit, KindCredit:
		return 1
	case KindWithdrawal, KindDebit:
		return -1
	}
	return 0
}

// Entry holds the fields shared by every ledger record. They never change after insertion.
type Entry struct {
	ID        string          `json:"id" db:"id"`
	AccountID string          `json:"userId" db:"account_id"`
	Kind      Kind            `json:"type" db:"kind"`
	Amount    decimal.Decimal `json:"amount" db:"amount" swaggertype:"string" example:"100.00"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// Base returns the shared part of the record.
func (e Entry) Base() Entry {
	return e
}

// SignedAmount is the effect of the entry on the owning account's balance.
func (e Entry) SignedAmount() decimal.Decimal {
	return e.Amount.Mul(decimal.NewFromInt(e.Kind.Sign()))
}

// Record is a transaction in the ledger: either a *LedgerEntry or an *Adjustment.
type Record interface {
	Base() Entry
	SignedAmount() decimal.Decimal
}

// LedgerEntry is a status-bearing deposit or withdrawal
type LedgerEntry struct {
	Entry
	Status     Status     `json:"status" db:"status"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty" db:"reviewed_at"`
}

// Adjustment is a note-bearing credit or debit
type Adjustment struct {
	Entry
	Note string `json:"note" db:"note"`
}

// Decision is an administrator's review outcome
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status returns the terminal status a decision moves an entry into.
func (d Decision) Status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}
