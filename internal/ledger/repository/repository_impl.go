package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/ledger/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const transactionColumns = `id, user_id, clip_id, amount, type, status, metadata, dedupe_key, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.ClipID,
		txn.Amount,
		txn.Type,
		txn.Status,
		txn.Metadata,
		txn.DedupeKey,
		txn.CreatedAt,
		txn.UpdatedAt,
	).Error
}

// InsertDeduped reports false when a row with the same dedupe key exists.
func (r *repo) InsertDeduped(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(txn)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	return r.findOne(ctx, db, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&txn).Error; err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		at,
		id,
	).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter domain.ListTransactionFilter, page pagination.Pagination) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ?", userID)
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	stmt, err := pagination.Apply(stmt, page)
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// SumByUser totals the ledger the way balances are maintained: earnings and
// referrals once completed, withdrawals from the moment they are requested
// unless an operator rejected them.
func (r *repo) SumByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (domain.Totals, error) {
	var row struct {
		Earnings    decimal.Decimal
		Referrals   decimal.Decimal
		Withdrawals decimal.Decimal
		Pending     decimal.Decimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount ELSE 0 END), 0) AS earnings,
			COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount ELSE 0 END), 0) AS referrals,
			COALESCE(SUM(CASE WHEN type = ? AND status <> ? THEN -amount ELSE 0 END), 0) AS withdrawals,
			COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN -amount ELSE 0 END), 0) AS pending
		 FROM transactions
		 WHERE user_id = ?`,
		domain.TypeEarning, domain.StatusCompleted,
		domain.TypeReferral, domain.StatusCompleted,
		domain.TypeWithdrawal, domain.StatusRejected,
		domain.TypeWithdrawal, domain.StatusPending,
		userID,
	).Scan(&row).Error
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.Totals{
		Earnings:    row.Earnings,
		Referrals:   row.Referrals,
		Withdrawals: row.Withdrawals,
		Pending:     row.Pending,
	}, nil
}

func (r *repo) SumEarningsByClip(ctx context.Context, db *gorm.DB, clipID snowflake.ID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total
		 FROM transactions
		 WHERE clip_id = ? AND type = ? AND status = ?`,
		clipID,
		domain.TypeEarning,
		domain.StatusCompleted,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
