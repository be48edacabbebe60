package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/offer/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const offerColumns = `id, name, title, cpm_rate, total_budget, paid_out, is_active, platforms,
	requirements, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, offer *domain.Offer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO offers (id, name, title, cpm_rate, total_budget, paid_out, is_active, platforms,
			requirements, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		offer.ID,
		offer.Name,
		offer.Title,
		offer.CPMRate,
		offer.TotalBudget,
		offer.PaidOut,
		offer.IsActive,
		offer.Platforms,
		offer.Requirements,
		offer.CreatedAt,
		offer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Offer, error) {
	return r.findOne(ctx, db, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id)
}

// FindByIDForUpdate takes the offer row lock that serializes budget spend.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Offer, error) {
	var offer domain.Offer
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&offer).Error
	if err != nil {
		return nil, err
	}
	if offer.ID == 0 {
		return nil, nil
	}
	return &offer, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Offer, error) {
	var offer domain.Offer
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&offer).Error; err != nil {
		return nil, err
	}
	if offer.ID == 0 {
		return nil, nil
	}
	return &offer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListOfferFilter, page pagination.Pagination) ([]*domain.Offer, error) {
	var offers []*domain.Offer
	stmt := db.WithContext(ctx).Model(&domain.Offer{})
	if filter.Active != nil {
		stmt = stmt.Where("is_active = ?", *filter.Active)
	}
	stmt, err := pagination.Apply(stmt, page)
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE offers SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		at,
		id,
	).Error
}

func (r *repo) AddPaidOut(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"paid_out":   gorm.Expr("paid_out + ?", amount),
			"updated_at": at,
		}).Error
}

func (r *repo) InsertMember(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "offer_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(member).Error
}

func (r *repo) FindMember(ctx context.Context, db *gorm.DB, offerID, userID snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT offer_id, user_id, joined_at FROM offer_members WHERE offer_id = ? AND user_id = ?`,
		offerID,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.OfferID == 0 {
		return nil, nil
	}
	return &member, nil
}
