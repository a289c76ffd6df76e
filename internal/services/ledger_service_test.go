package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bvabank/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountCols = []string{"id", "name", "email", "password_hash", "account_number", "balance", "is_blocked",
	"manager_name", "manager_email", "version", "created_at", "updated_at", "deleted_at"}

var transactionCols = []string{"id", "account_id", "kind", "amount", "status", "note", "created_at", "reviewed_at"}

const (
	lockAccountQuery = "SELECT (.+) FROM accounts WHERE id = \\$1 AND deleted_at IS NULL FOR UPDATE"
	updateBalanceSQL = "UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4"
	lockRecordQuery  = "SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(db *sql.DB) *LedgerService {
	s := NewLedgerService(db)
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "tx-1" }
	return s
}

func accountRow(id, balance string, blocked bool, version int) *sqlmock.Rows {
	return sqlmock.NewRows(accountCols).
		AddRow(id, "John Doe", "john@example.com", "hash", "20481937465", balance, blocked,
			"Ada Obi", "ada@bvabank.com", version, fixedNow, fixedNow, nil)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerService_Deposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newTestLedger(db)
	ctx := context.Background()

	t.Run("successful deposit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "100", false, 1))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("140", fixedNow, "acc-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("tx-1", "acc-1", "deposit", "40", "approved", nil, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, entry, err := service.Deposit(ctx, "acc-1", dec("40"))
		require.NoError(t, err)
		assert.True(t, dec("140").Equal(account.Balance))
		assert.Equal(t, 2, account.Version)
		assert.Equal(t, models.KindDeposit, entry.Kind)
		assert.Equal(t, models.StatusApproved, entry.Status)
		assert.Equal(t, "acc-1", entry.AccountID)
		assert.Nil(t, entry.ReviewedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount never reaches the store", func(t *testing.T) {
		for _, amount := range []string{"0", "-5"} {
			_, _, err := service.Deposit(ctx, "acc-1", dec(amount))
			assert.ErrorIs(t, err, models.ErrValidation)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sub-cent amount rejected", func(t *testing.T) {
		_, _, err := service.Deposit(ctx, "acc-1", dec("0.005"))
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("amount beyond column precision rejected", func(t *testing.T) {
		for _, amount := range []string{"1e17", "10000000000000000"} {
			_, _, err := service.Deposit(ctx, "acc-1", dec(amount))
			assert.ErrorIs(t, err, models.ErrValidation)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resulting balance beyond column precision rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "9999999999999999", false, 1))
		mock.ExpectRollback()

		_, _, err := service.Deposit(ctx, "acc-1", dec("1"))
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(accountCols))
		mock.ExpectRollback()

		_, _, err := service.Deposit(ctx, "ghost", dec("10"))
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed entry append rolls back the balance", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "100", false, 1))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("110", fixedNow, "acc-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		account, entry, err := service.Deposit(ctx, "acc-1", dec("10"))
		assert.ErrorIs(t, err, models.ErrStore)
		assert.Nil(t, account)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost version race", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "100", false, 4))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("110", fixedNow, "acc-1", 4).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, _, err := service.Deposit(ctx, "acc-1", dec("10"))
		assert.ErrorIs(t, err, models.ErrStore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_Withdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newTestLedger(db)
	ctx := context.Background()

	t.Run("successful withdrawal", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "140", false, 2))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("90", fixedNow, "acc-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("tx-1", "acc-1", "withdrawal", "50", "approved", nil, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, entry, err := service.Withdraw(ctx, "acc-1", dec("50"))
		require.NoError(t, err)
		assert.True(t, dec("90").Equal(account.Balance))
		assert.Equal(t, models.KindWithdrawal, entry.Kind)
		assert.True(t, dec("-50").Equal(entry.SignedAmount()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawing the full balance leaves zero", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "90", false, 3))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("0", fixedNow, "acc-1", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, _, err := service.Withdraw(ctx, "acc-1", dec("90"))
		require.NoError(t, err)
		assert.True(t, account.Balance.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance writes nothing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "90", false, 3))
		mock.ExpectRollback()

		_, _, err := service.Withdraw(ctx, "acc-1", dec("100"))
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_ManualAdjust(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newTestLedger(db)
	ctx := context.Background()

	t.Run("credit with note", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "90", false, 3))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("110", fixedNow, "acc-1", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("tx-1", "acc-1", "credit", "20", nil, "refund", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, adjustment, err := service.ManualAdjust(ctx, "acc-1", models.KindCredit, dec("20"), "  refund ")
		require.NoError(t, err)
		assert.True(t, dec("110").Equal(account.Balance))
		assert.Equal(t, "refund", adjustment.Note)
		assert.Equal(t, models.KindCredit, adjustment.Kind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debit beyond balance", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "10", false, 3))
		mock.ExpectRollback()

		_, _, err := service.ManualAdjust(ctx, "acc-1", models.KindDebit, dec("10.01"), "fee")
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects status-bearing kinds and empty notes", func(t *testing.T) {
		_, _, err := service.ManualAdjust(ctx, "acc-1", models.KindDeposit, dec("10"), "note")
		assert.ErrorIs(t, err, models.ErrValidation)

		_, _, err = service.ManualAdjust(ctx, "acc-1", models.KindCredit, dec("10"), "   ")
		assert.ErrorIs(t, err, models.ErrValidation)

		_, _, err = service.ManualAdjust(ctx, "acc-1", models.Kind("transfer"), dec("10"), "note")
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_SelfAdjust(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newTestLedger(db)
	ctx := context.Background()

	t.Run("blocked account refused", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "100", true, 1))
		mock.ExpectRollback()

		_, _, err := service.SelfAdjust(ctx, "acc-1", models.KindDebit, dec("5"), "coffee")
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debit moves own balance", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "100", false, 1))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("95", fixedNow, "acc-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("tx-1", "acc-1", "debit", "5", nil, "coffee", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, adjustment, err := service.SelfAdjust(ctx, "acc-1", models.KindDebit, dec("5"), "coffee")
		require.NoError(t, err)
		assert.True(t, dec("95").Equal(account.Balance))
		assert.Equal(t, "coffee", adjustment.Note)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_ReviewTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newTestLedger(db)
	ctx := context.Background()

	t.Run("reject leaves the balance alone", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockRecordQuery).
			WithArgs("tx-9").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("tx-9", "acc-1", "deposit", "40", "approved", nil, fixedNow, nil))
		mock.ExpectExec("UPDATE transactions SET status = \\$1, reviewed_at = \\$2 WHERE id = \\$3 AND status IS NOT NULL").
			WithArgs("rejected", fixedNow, "tx-9").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		entry, err := service.ReviewTransaction(ctx, "tx-9", models.DecisionReject)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, entry.Status)
		assert.True(t, dec("40").Equal(entry.Amount))
		require.NotNil(t, entry.ReviewedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approve records the decision once", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockRecordQuery).
			WithArgs("tx-7").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("tx-7", "acc-1", "withdrawal", "15", "approved", nil, fixedNow, nil))
		mock.ExpectExec("UPDATE transactions SET status = \\$1, reviewed_at = \\$2 WHERE id = \\$3 AND status IS NOT NULL").
			WithArgs("approved", fixedNow, "tx-7").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		entry, err := service.ReviewTransaction(ctx, "tx-7", models.DecisionApprove)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, entry.Status)
		assert.Equal(t, models.KindWithdrawal, entry.Kind)
		require.NotNil(t, entry.ReviewedAt)
		assert.Equal(t, fixedNow, *entry.ReviewedAt)
		// no UPDATE accounts expectation: any balance write fails the mock
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second review refused", func(t *testing.T) {
		reviewed := fixedNow.Add(-time.Hour)
		mock.ExpectBegin()
		mock.ExpectQuery(lockRecordQuery).
			WithArgs("tx-9").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("tx-9", "acc-1", "deposit", "40", "rejected", nil, fixedNow, reviewed))
		mock.ExpectRollback()

		_, err := service.ReviewTransaction(ctx, "tx-9", models.DecisionApprove)
		assert.ErrorIs(t, err, models.ErrAlreadyReviewed)
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("note-bearing entries have no status", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockRecordQuery).
			WithArgs("tx-2").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("tx-2", "acc-1", "credit", "20", nil, "refund", fixedNow, nil))
		mock.ExpectRollback()

		_, err := service.ReviewTransaction(ctx, "tx-2", models.DecisionApprove)
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockRecordQuery).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(transactionCols))
		mock.ExpectRollback()

		_, err := service.ReviewTransaction(ctx, "missing", models.DecisionApprove)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown decision", func(t *testing.T) {
		_, err := service.ReviewTransaction(ctx, "tx-9", models.Decision("maybe"))
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestLedgerService_CorrectBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newTestLedger(db)
	ctx := context.Background()

	t.Run("raise balance with a credit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "90", false, 3))
		mock.ExpectExec(updateBalanceSQL).
			WithArgs("100.5", fixedNow, "acc-1", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("tx-1", "acc-1", "credit", "10.5", nil, balanceCorrectionNote, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, adjustment, err := service.CorrectBalance(ctx, "acc-1", dec("100.50"), "")
		require.NoError(t, err)
		assert.True(t, dec("100.50").Equal(account.Balance))
		require.NotNil(t, adjustment)
		assert.Equal(t, models.KindCredit, adjustment.Kind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("target beyond column precision rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "90", false, 3))
		mock.ExpectRollback()

		_, _, err := service.CorrectBalance(ctx, "acc-1", dec("1e16"), "")
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same balance is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs("acc-1").
			WillReturnRows(accountRow("acc-1", "90", false, 3))
		mock.ExpectCommit()

		account, adjustment, err := service.CorrectBalance(ctx, "acc-1", dec("90.00"), "audit")
		require.NoError(t, err)
		assert.Nil(t, adjustment)
		assert.Equal(t, 3, account.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
