package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bvabank/backend/internal/models"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, email, password_hash, account_number, balance, is_blocked,
	manager_name, manager_email, version, created_at, updated_at, deleted_at`

func scanAccount(row scanner) (*models.Account, error) {
	var (
		a            models.Account
		managerName  sql.NullString
		managerEmail sql.NullString
		deletedAt    sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.AccountNumber, &a.Balance, &a.IsBlocked,
		&managerName, &managerEmail, &a.Version, &a.CreatedAt, &a.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if managerName.Valid || managerEmail.Valid {
		a.AccountManager = &models.Manager{Name: managerName.String, Email: managerEmail.String}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	return &a, nil
}

func managerArgs(m *models.Manager) (any, any) {
	if m == nil {
		return nil, nil
	}
	return nullable(m.Name), nullable(m.Email)
}

// InsertAccount stores a new account. A duplicate live email is reported as a validation error.
func InsertAccount(ctx context.Context, q DBTX, a *models.Account) error {
	managerName, managerEmail := managerArgs(a.AccountManager)
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, account_number, balance, is_blocked,
			manager_name, manager_email, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.AccountNumber, a.Balance, a.IsBlocked,
		managerName, managerEmail, a.Version, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already exists", models.ErrValidation)
		}
		return storeError("insert account", err)
	}
	return nil
}

// GetAccount returns a live account.
func GetAccount(ctx context.Context, q DBTX, id string) (*models.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND deleted_at IS NULL`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, storeError("get account", err)
	}
	return a, nil
}

// LockAccount loads a live account and holds its row lock until the surrounding transaction ends.
// Concurrent mutations of the same account queue behind this lock.
func LockAccount(ctx context.Context, tx DBTX, id string) (*models.Account, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, storeError("lock account", err)
	}
	return a, nil
}

// GetAccountByEmail matches live accounts case-insensitively.
func GetAccountByEmail(ctx context.Context, q DBTX, email string) (*models.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1) AND deleted_at IS NULL`, email)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", email)
	}
	if err != nil {
		return nil, storeError("get account by email", err)
	}
	return a, nil
}

func ListAccounts(ctx context.Context, q DBTX) ([]*models.Account, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	defer rows.Close()

	accounts := []*models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeError("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list accounts", err)
	}
	return accounts, nil
}

// UpdateBalance writes a new balance only if the row still carries the expected version.
func UpdateBalance(ctx context.Context, tx DBTX, a *models.Account, balance decimal.Decimal, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		balance, now, a.ID, a.Version)
	if err != nil {
		return storeError("update balance", err)
	}
	if err := expectOneRow(result, a.ID); err != nil {
		return err
	}

	a.Balance = balance
	a.Version++
	a.UpdatedAt = now
	return nil
}

// SaveProfile persists name, blocked flag and manager under the same version check.
func SaveProfile(ctx context.Context, tx DBTX, a *models.Account, now time.Time) error {
	managerName, managerEmail := managerArgs(a.AccountManager)
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET name = $1, is_blocked = $2, manager_name = $3, manager_email = $4,
			version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`,
		a.Name, a.IsBlocked, managerName, managerEmail, now, a.ID, a.Version)
	if err != nil {
		return storeError("save profile", err)
	}
	if err := expectOneRow(result, a.ID); err != nil {
		return err
	}

	a.Version++
	a.UpdatedAt = now
	return nil
}

// SoftDeleteAccount tombstones the account. Its transactions stay in the ledger.
func SoftDeleteAccount(ctx context.Context, q DBTX, id string, now time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE accounts SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL`, now, id)
	if err != nil {
		return storeError("delete account", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return storeError("delete account", err)
	}
	if n == 0 {
		return notFound("user", id)
	}
	return nil
}

// AccountTotals returns the number of live accounts and the sum of their balances.
func AccountTotals(ctx context.Context, q DBTX) (int64, decimal.Decimal, error) {
	var (
		count int64
		total decimal.Decimal
	)
	err := q.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM accounts WHERE deleted_at IS NULL`).
		Scan(&count, &total)
	if err != nil {
		return 0, decimal.Zero, storeError("account totals", err)
	}
	return count, total, nil
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storeError("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: optimistic lock failed for account %s", models.ErrStore, id)
	}
	return nil
}
