package models

import "github.com/shopspring/decimal"

type TransactionStats struct {
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
	Rejected int64 `json:"rejected"`
}

// Statistics is the administrator dashboard summary
type Statistics struct {
	TotalUsers        int64            `json:"totalUsers"`
	TotalBalance      decimal.Decimal  `json:"totalBalance" swaggertype:"string" example:"1500.00"`
	TotalTransactions int64            `json:"totalTransactions"`
	TransactionStats  TransactionStats `json:"transactionStats"`
}
