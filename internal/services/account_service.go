package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/bvabank/backend/internal/logger"
	"github.com/bvabank/backend/internal/models"
	"github.com/bvabank/backend/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest represents the account creation payload
// @Description Account creation request structure
type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required" example:"John Doe"`
	Email          string          `json:"email" validate:"required,email" example:"user@example.com"`
	Password       string          `json:"password" validate:"required,min=6" example:"password123"`
	AccountManager *ManagerRequest `json:"accountManager" validate:"required"`
}

// ManagerRequest represents an account manager assignment
type ManagerRequest struct {
	Name  string `json:"name" validate:"required" example:"Ada Obi"`
	Email string `json:"email" validate:"required,email" example:"ada@bvabank.com"`
}

// UpdateAccountRequest carries optional profile edits
type UpdateAccountRequest struct {
	Name    *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Balance *decimal.Decimal `json:"balance,omitempty" swaggertype:"string"`
}

// balanceCorrectionNote is recorded on adjustments produced by a direct balance edit.
const balanceCorrectionNote = "balance correction by administrator"

type AccountService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
	now       func() time.Time
}

func NewAccountService(db *sql.DB, ledger *LedgerService) *AccountService {
	return &AccountService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount registers a user with a zero balance and a generated account number.
func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	if _, err := store.GetAccountByEmail(ctx, s.db, req.Email); err == nil {
		return nil, fmt.Errorf("%w: user already exists", models.ErrValidation)
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %w", models.ErrStore, err)
	}

	now := s.now()
	account := &models.Account{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Email:          req.Email,
		PasswordHash:   hashedPassword,
		AccountNumber:  generateAccountNumber(),
		Balance:        decimal.Zero,
		AccountManager: &models.Manager{Name: req.AccountManager.Name, Email: req.AccountManager.Email},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.InsertAccount(ctx, s.db, account); err != nil {
		return nil, err
	}

	logger.Info("ACCOUNT", "user created", logger.Fields{
		"accountId":     account.ID,
		"accountNumber": account.AccountNumber,
		"email":         account.Email,
	})
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	return store.ListAccounts(ctx, s.db)
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return store.GetAccount(ctx, s.db, id)
}

// UpdateAccount renames the account and/or sets its balance. A balance change is booked as a
// credit or debit adjustment for the difference in the same transaction.
func (s *AccountService) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}
	if req.Name == nil && req.Balance != nil {
		account, _, err := s.ledger.CorrectBalance(ctx, id, *req.Balance, balanceCorrectionNote)
		return account, err
	}

	return s.withLockedAccount(ctx, id, func(tx *sql.Tx, a *models.Account) error {
		if req.Name != nil {
			if name := strings.TrimSpace(*req.Name); name != "" && name != a.Name {
				a.Name = name
				if err := store.SaveProfile(ctx, tx, a, s.now()); err != nil {
					return err
				}
			}
		}
		if req.Balance != nil {
			if _, err := s.ledger.correctBalanceTx(ctx, tx, a, *req.Balance, balanceCorrectionNote); err != nil {
				return err
			}
		}
		return nil
	})
}

// ToggleBlock flips the blocked flag.
func (s *AccountService) ToggleBlock(ctx context.Context, id string) (*models.Account, error) {
	return s.withLockedAccount(ctx, id, func(tx *sql.Tx, a *models.Account) error {
		a.IsBlocked = !a.IsBlocked
		return store.SaveProfile(ctx, tx, a, s.now())
	})
}

func (s *AccountService) AssignManager(ctx context.Context, id string, req ManagerRequest) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	return s.withLockedAccount(ctx, id, func(tx *sql.Tx, a *models.Account) error {
		a.AccountManager = &models.Manager{Name: req.Name, Email: req.Email}
		return store.SaveProfile(ctx, tx, a, s.now())
	})
}

// DeleteAccount tombstones the account. Its ledger entries are kept and stay listable.
func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	if err := store.SoftDeleteAccount(ctx, s.db, id, s.now()); err != nil {
		return err
	}
	logger.Info("ACCOUNT", "user deleted", logger.Fields{"accountId": id})
	return nil
}

func (s *AccountService) withLockedAccount(ctx context.Context, id string, fn func(tx *sql.Tx, a *models.Account) error) (*models.Account, error) {
	var account *models.Account
	err := store.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		a, err := store.LockAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// generateAccountNumber returns 11 digits with a non-zero leading digit.
func generateAccountNumber() string {
	return fmt.Sprintf("%d", 10_000_000_000+rand.Int63n(90_000_000_000))
}
