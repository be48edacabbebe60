package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"gorm.io/gorm"
)

// Totals are the ledger sums backing a user's balance.
type Totals struct {
	Earnings    decimal.Decimal
	Referrals   decimal.Decimal
	Withdrawals decimal.Decimal
	Pending     decimal.Decimal
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	// InsertDeduped inserts unless a row with the same dedupe key exists and
	// reports whether a row was written.
	InsertDeduped(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, at time.Time) error
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter ListTransactionFilter, page pagination.Pagination) ([]*Transaction, error)
	SumByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (Totals, error)
	SumEarningsByClip(ctx context.Context, db *gorm.DB, clipID snowflake.ID) (decimal.Decimal, error)
}
