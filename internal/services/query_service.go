package services

import (
	"context"
	"database/sql"

	"github.com/bvabank/backend/internal/models"
	"github.com/bvabank/backend/internal/store"
)

// QueryService serves read-only projections over accounts and the ledger.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// ListTransactions returns an account's entries newest first. Entries of deleted accounts
// remain listable.
func (s *QueryService) ListTransactions(ctx context.Context, accountID string) ([]models.Record, error) {
	return store.ListRecordsByAccount(ctx, s.db, accountID)
}

// ListAllTransactions returns every entry newest first.
func (s *QueryService) ListAllTransactions(ctx context.Context) ([]models.Record, error) {
	return store.ListRecords(ctx, s.db)
}

// Statistics reads account and ledger totals from a single snapshot so the figures agree
// with each other.
func (s *QueryService) Statistics(ctx context.Context) (*models.Statistics, error) {
	var stats models.Statistics
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := store.WithTx(ctx, s.db, opts, func(tx *sql.Tx) error {
		users, balance, err := store.AccountTotals(ctx, tx)
		if err != nil {
			return err
		}
		total, byStatus, err := store.RecordTotals(ctx, tx)
		if err != nil {
			return err
		}

		stats = models.Statistics{
			TotalUsers:        users,
			TotalBalance:      balance,
			TotalTransactions: total,
			TransactionStats:  byStatus,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
