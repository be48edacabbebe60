package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const clipColumns = `id, user_id, offer_id, video_url, platform, status, views, likes, comments,
	title, thumbnail_url, earned_amount, is_verified, verification_code, rejection_reason,
	last_stats_fetch, approved_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, clip *domain.Clip) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clips (id, user_id, offer_id, video_url, platform, status, views, likes, comments,
			title, thumbnail_url, earned_amount, is_verified, verification_code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		clip.ID,
		clip.UserID,
		clip.OfferID,
		clip.VideoURL,
		clip.Platform,
		clip.Status,
		clip.Views,
		clip.Likes,
		clip.Comments,
		clip.Title,
		clip.ThumbnailURL,
		clip.EarnedAmount,
		clip.IsVerified,
		clip.VerificationCode,
		clip.CreatedAt,
		clip.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Clip, error) {
	return r.findOne(ctx, db, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
}

// FindByIDForUpdate locks the clip row until the surrounding transaction ends.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Clip, error) {
	var clip domain.Clip
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&clip).Error
	if err != nil {
		return nil, err
	}
	if clip.ID == 0 {
		return nil, nil
	}
	return &clip, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Clip, error) {
	var clip domain.Clip
	err := db.WithContext(ctx).Raw(query, args...).Scan(&clip).Error
	if err != nil {
		return nil, err
	}
	if clip.ID == 0 {
		return nil, nil
	}
	return &clip, nil
}

func (r *repo) ExistsForOffer(ctx context.Context, db *gorm.DB, offerID snowflake.ID, videoURL string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM clips WHERE offer_id = ? AND video_url = ?`,
		offerID,
		videoURL,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListClipFilter, page pagination.Pagination) ([]*domain.Clip, error) {
	var clips []*domain.Clip
	stmt := db.WithContext(ctx).Model(&domain.Clip{})
	if filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.OfferID != 0 {
		stmt = stmt.Where("offer_id = ?", filter.OfferID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt, err := pagination.Apply(stmt, page)
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&clips).Error; err != nil {
		return nil, err
	}
	return clips, nil
}

// ListApproved returns the next page of approved clips in submission order.
func (r *repo) ListApproved(ctx context.Context, db *gorm.DB, platforms []domain.Platform, after *domain.AccrualCursor, limit int) ([]*domain.Clip, error) {
	var clips []*domain.Clip
	stmt := db.WithContext(ctx).
		Model(&domain.Clip{}).
		Where("status = ?", domain.StatusApproved)
	if len(platforms) > 0 {
		stmt = stmt.Where("platform IN ?", platforms)
	}
	if after != nil {
		stmt = stmt.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	err := stmt.
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&clips).Error
	if err != nil {
		return nil, err
	}
	return clips, nil
}

func (r *repo) ApplyStats(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.StatsUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clips
		 SET views = CASE WHEN views < ? THEN ? ELSE views END,
		     likes = ?,
		     comments = ?,
		     title = COALESCE(NULLIF(?, ''), title),
		     thumbnail_url = COALESCE(NULLIF(?, ''), thumbnail_url),
		     is_verified = ?,
		     last_stats_fetch = ?,
		     updated_at = ?
		 WHERE id = ?`,
		update.Views,
		update.Views,
		update.Likes,
		update.Comments,
		update.Title,
		update.ThumbnailURL,
		update.IsVerified,
		update.FetchedAt,
		update.FetchedAt,
		id,
	).Error
}

// BackfillPending fills display fields of a clip still awaiting moderation.
// Verification and earnings are left to approval.
func (r *repo) BackfillPending(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.StatsUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clips
		 SET views = CASE WHEN views < ? THEN ? ELSE views END,
		     likes = ?,
		     comments = ?,
		     title = COALESCE(NULLIF(?, ''), title),
		     thumbnail_url = COALESCE(NULLIF(?, ''), thumbnail_url),
		     last_stats_fetch = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		update.Views,
		update.Views,
		update.Likes,
		update.Comments,
		update.Title,
		update.ThumbnailURL,
		update.FetchedAt,
		update.FetchedAt,
		id,
		domain.StatusPending,
	).Error
}

func (r *repo) TouchStatsFetch(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clips SET last_stats_fetch = ?, updated_at = ? WHERE id = ?`,
		at,
		at,
		id,
	).Error
}

func (r *repo) AddEarned(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clips SET earned_amount = earned_amount + ?, updated_at = ? WHERE id = ?`,
		amount,
		at,
		id,
	).Error
}

func (r *repo) MarkApproved(ctx context.Context, db *gorm.DB, id snowflake.ID, views int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clips
		 SET status = ?, views = ?, is_verified = ?, approved_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusApproved,
		views,
		true,
		at,
		at,
		id,
	).Error
}

func (r *repo) MarkRejected(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clips SET status = ?, rejection_reason = ?, updated_at = ? WHERE id = ?`,
		domain.StatusRejected,
		reason,
		at,
		id,
	).Error
}
