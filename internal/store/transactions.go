package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bvabank/backend/internal/models"
)

const transactionColumns = `id, account_id, kind, amount, status, note, created_at, reviewed_at`

func scanRecord(row scanner) (models.Record, error) {
	var (
		e          models.Entry
		status     sql.NullString
		note       sql.NullString
		reviewedAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &status, &note, &e.CreatedAt, &reviewedAt); err != nil {
		return nil, err
	}

	switch {
	case e.Kind.IsStatusBearing():
		entry := &models.LedgerEntry{Entry: e, Status: models.Status(status.String)}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			entry.ReviewedAt = &t
		}
		return entry, nil
	case e.Kind.IsNoteBearing():
		return &models.Adjustment{Entry: e, Note: note.String}, nil
	}
	return nil, fmt.Errorf("unknown transaction kind %q on %s", e.Kind, e.ID)
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storeError("scan transaction", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list transactions", err)
	}
	return records, nil
}

func insertRecord(ctx context.Context, q DBTX, e models.Entry, status, note string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.AccountID, string(e.Kind), e.Amount, nullable(status), nullable(note), e.CreatedAt)
	if err != nil {
		return storeError("insert transaction", err)
	}
	return nil
}

// InsertLedgerEntry appends a status-bearing entry.
func InsertLedgerEntry(ctx context.Context, q DBTX, e *models.LedgerEntry) error {
	return insertRecord(ctx, q, e.Entry, string(e.Status), "")
}

// InsertAdjustment appends a note-bearing entry.
func InsertAdjustment(ctx context.Context, q DBTX, a *models.Adjustment) error {
	return insertRecord(ctx, q, a.Entry, "", a.Note)
}

// LockRecord loads a transaction and holds its row lock so two reviews cannot interleave.
func LockRecord(ctx context.Context, tx DBTX, id string) (models.Record, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transaction", id)
	}
	if err != nil {
		return nil, storeError("lock transaction", err)
	}
	return r, nil
}

// SetStatus records a review outcome. Only the status and review time ever change on an entry.
func SetStatus(ctx context.Context, tx DBTX, id string, status models.Status, reviewedAt time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, reviewed_at = $2
		WHERE id = $3 AND status IS NOT NULL`,
		string(status), reviewedAt, id)
	if err != nil {
		return storeError("set status", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return storeError("set status", err)
	}
	if n == 0 {
		return notFound("transaction", id)
	}
	return nil
}

// ListRecordsByAccount returns an account's entries newest first, whether or not the
// account is still live.
func ListRecordsByAccount(ctx context.Context, q DBTX, accountID string) ([]models.Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	return scanRecords(rows)
}

func ListRecords(ctx context.Context, q DBTX) ([]models.Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	return scanRecords(rows)
}

// RecordTotals counts every entry and breaks the status-bearing ones down by status.
func RecordTotals(ctx context.Context, q DBTX) (int64, models.TransactionStats, error) {
	var (
		total int64
		stats models.TransactionStats
	)
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM transactions`).
		Scan(&total, &stats.Approved, &stats.Pending, &stats.Rejected)
	if err != nil {
		return 0, models.TransactionStats{}, storeError("transaction totals", err)
	}
	return total, stats, nil
}
