package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bvabank/backend/internal/logger"
	"github.com/bvabank/backend/internal/models"
	"github.com/bvabank/backend/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService applies balance mutations. Each mutation locks the account row, updates the
// balance and appends its ledger entry inside one database transaction, so either both writes
// commit or neither does.
type LedgerService struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Deposit credits the account and records an approved deposit.
func (s *LedgerService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*models.Account, *models.LedgerEntry, error) {
	return s.applyStatusBearing(ctx, accountID, models.KindDeposit, amount)
}

// Withdraw debits the account and records an approved withdrawal.
func (s *LedgerService) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (*models.Account, *models.LedgerEntry, error) {
	return s.applyStatusBearing(ctx, accountID, models.KindWithdrawal, amount)
}

// ManualAdjust applies an administrator credit or debit carrying a note.
func (s *LedgerService) ManualAdjust(ctx context.Context, accountID string, kind models.Kind, amount decimal.Decimal, note string) (*models.Account, *models.Adjustment, error) {
	return s.applyNoteBearing(ctx, accountID, kind, amount, note, nil)
}

// SelfAdjust is the account holder's own credit or debit. Blocked accounts are refused.
func (s *LedgerService) SelfAdjust(ctx context.Context, accountID string, kind models.Kind, amount decimal.Decimal, note string) (*models.Account, *models.Adjustment, error) {
	return s.applyNoteBearing(ctx, accountID, kind, amount, note, func(a *models.Account) error {
		if a.IsBlocked {
			return fmt.Errorf("%w: account is blocked", models.ErrForbidden)
		}
		return nil
	})
}

// ReviewTransaction moves a deposit or withdrawal into approved or rejected. The balance effect
// was applied when the entry was created and is left untouched whatever the decision.
// An entry can be reviewed once; later reviews fail with ErrAlreadyReviewed.
func (s *LedgerService) ReviewTransaction(ctx context.Context, transactionID string, decision models.Decision) (*models.LedgerEntry, error) {
	status, ok := decision.Status()
	if !ok {
		return nil, fmt.Errorf("%w: decision must be approve or reject", models.ErrValidation)
	}

	var reviewed *models.LedgerEntry
	err := store.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		record, err := store.LockRecord(ctx, tx, transactionID)
		if err != nil {
			return err
		}

		entry, ok := record.(*models.LedgerEntry)
		if !ok {
			return fmt.Errorf("%w: %s transactions have no review status", models.ErrValidation, record.Base().Kind)
		}
		if entry.ReviewedAt != nil {
			return models.ErrAlreadyReviewed
		}

		now := s.now()
		if err := store.SetStatus(ctx, tx, entry.ID, status, now); err != nil {
			return err
		}
		entry.Status = status
		entry.ReviewedAt = &now
		reviewed = entry
		return nil
	})
	if err != nil {
		logFailure("review transaction", err, logger.Fields{"transactionId": transactionID, "decision": decision})
		return nil, err
	}

	logger.Info("LEDGER", "transaction reviewed", logger.Fields{
		"transactionId": reviewed.ID,
		"accountId":     reviewed.AccountID,
		"status":        reviewed.Status,
	})
	return reviewed, nil
}

func (s *LedgerService) applyStatusBearing(ctx context.Context, accountID string, kind models.Kind, amount decimal.Decimal) (*models.Account, *models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}

	var entry *models.LedgerEntry
	account, err := s.mutate(ctx, accountID, kind, amount, nil, func(tx *sql.Tx, base models.Entry) error {
		entry = &models.LedgerEntry{Entry: base, Status: models.StatusApproved}
		return store.InsertLedgerEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, nil, err
	}
	return account, entry, nil
}

func (s *LedgerService) applyNoteBearing(ctx context.Context, accountID string, kind models.Kind, amount decimal.Decimal, note string, guard func(*models.Account) error) (*models.Account, *models.Adjustment, error) {
	note = strings.TrimSpace(note)
	if !kind.IsNoteBearing() {
		return nil, nil, fmt.Errorf("%w: type must be credit or debit", models.ErrValidation)
	}
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}
	if note == "" {
		return nil, nil, fmt.Errorf("%w: note is required", models.ErrValidation)
	}

	var adjustment *models.Adjustment
	account, err := s.mutate(ctx, accountID, kind, amount, guard, func(tx *sql.Tx, base models.Entry) error {
		adjustment = &models.Adjustment{Entry: base, Note: note}
		return store.InsertAdjustment(ctx, tx, adjustment)
	})
	if err != nil {
		return nil, nil, err
	}
	return account, adjustment, nil
}

// mutate is the shared unit of work: lock, check funds, write the balance, append the entry.
func (s *LedgerService) mutate(ctx context.Context, accountID string, kind models.Kind, amount decimal.Decimal,
	guard func(*models.Account) error, appendEntry func(tx *sql.Tx, base models.Entry) error) (*models.Account, error) {
	var account *models.Account
	err := store.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		a, err := store.LockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(a); err != nil {
				return err
			}
		}

		if err := s.applyTx(ctx, tx, a, kind, amount, appendEntry); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		logFailure(string(kind), err, logger.Fields{"accountId": accountID, "amount": amount.String()})
		return nil, err
	}

	logger.Info("LEDGER", string(kind)+" applied", logger.Fields{
		"accountId": account.ID,
		"amount":    amount.String(),
		"balance":   account.Balance.String(),
	})
	return account, nil
}

// applyTx changes the balance of a locked account and appends the matching entry.
func (s *LedgerService) applyTx(ctx context.Context, tx *sql.Tx, a *models.Account, kind models.Kind, amount decimal.Decimal,
	appendEntry func(tx *sql.Tx, base models.Entry) error) error {
	balance := a.Balance.Add(amount.Mul(decimal.NewFromInt(kind.Sign())))
	if balance.IsNegative() {
		return fmt.Errorf("%w: balance %s is less than %s", models.ErrInsufficientFunds, a.Balance.StringFixed(2), amount.StringFixed(2))
	}
	if balance.GreaterThanOrEqual(maxMoney) {
		return fmt.Errorf("%w: resulting balance must be less than %s", models.ErrValidation, maxMoney.String())
	}

	now := s.now()
	if err := store.UpdateBalance(ctx, tx, a, balance, now); err != nil {
		return err
	}

	base := models.Entry{
		ID:        s.newID(),
		AccountID: a.ID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: now,
	}
	return appendEntry(tx, base)
}

// CorrectBalance sets the account balance to target, booking the difference as an adjustment.
// The returned adjustment is nil when the balance already equals target.
func (s *LedgerService) CorrectBalance(ctx context.Context, accountID string, target decimal.Decimal, note string) (*models.Account, *models.Adjustment, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		note = balanceCorrectionNote
	}

	var (
		account    *models.Account
		adjustment *models.Adjustment
	)
	err := store.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		a, err := store.LockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if adjustment, err = s.correctBalanceTx(ctx, tx, a, target, note); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		logFailure("balance correction", err, logger.Fields{"accountId": accountID, "target": target.String()})
		return nil, nil, err
	}
	return account, adjustment, nil
}

// correctBalanceTx moves a locked account to target by recording the difference as an
// adjustment, so a direct balance edit still leaves a ledger trail. A zero difference is a no-op.
func (s *LedgerService) correctBalanceTx(ctx context.Context, tx *sql.Tx, a *models.Account, target decimal.Decimal, note string) (*models.Adjustment, error) {
	if target.IsNegative() {
		return nil, fmt.Errorf("%w: balance cannot be negative", models.ErrValidation)
	}
	if !target.Equal(target.Round(2)) {
		return nil, fmt.Errorf("%w: balance must have at most two decimal places", models.ErrValidation)
	}
	if target.GreaterThanOrEqual(maxMoney) {
		return nil, fmt.Errorf("%w: balance must be less than %s", models.ErrValidation, maxMoney.String())
	}

	delta := target.Sub(a.Balance)
	if delta.IsZero() {
		return nil, nil
	}

	kind := models.KindCredit
	if delta.IsNegative() {
		kind = models.KindDebit
	}

	var adjustment *models.Adjustment
	err := s.applyTx(ctx, tx, a, kind, delta.Abs(), func(tx *sql.Tx, base models.Entry) error {
		adjustment = &models.Adjustment{Entry: base, Note: note}
		return store.InsertAdjustment(ctx, tx, adjustment)
	})
	if err != nil {
		return nil, err
	}
	return adjustment, nil
}

func logFailure(op string, err error, fields logger.Fields) {
	if errors.Is(err, models.ErrStore) {
		logger.Error("LEDGER", op+" failed", err, fields)
		return
	}
	logger.Info("LEDGER", op+" rejected: "+err.Error(), fields)
}
