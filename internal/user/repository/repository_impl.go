package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const userColumns = `id, external_id, username, name, balance, is_admin, referral_code,
	referred_by_id, verification_code, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, external_id, username, name, balance, is_admin, referral_code,
			referred_by_id, verification_code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.ExternalID,
		user.Username,
		user.Name,
		user.Balance,
		user.IsAdmin,
		user.ReferralCode,
		user.ReferredByID,
		user.VerificationCode,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE external_id = ?`, externalID)
}

func (r *repo) FindByReferralCode(ctx context.Context, db *gorm.DB, code string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE referral_code = ?`, code)
}

func (r *repo) ListAdmins(ctx context.Context, db *gorm.DB) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE is_admin = ? ORDER BY id ASC`,
		true,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&user).Error; err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) SetAdmin(ctx context.Context, db *gorm.DB, id snowflake.ID, admin bool, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`,
		admin,
		at,
		id,
	).Error
}

func (r *repo) AddBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": at,
		}).Error
}
