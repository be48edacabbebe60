package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"gorm.io/gorm"
)

// AccrualCursor is the keyset position of the accrual scan.
type AccrualCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, clip *Clip) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Clip, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Clip, error)
	ExistsForOffer(ctx context.Context, db *gorm.DB, offerID snowflake.ID, videoURL string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListClipFilter, page pagination.Pagination) ([]*Clip, error)
	ListApproved(ctx context.Context, db *gorm.DB, platforms []Platform, after *AccrualCursor, limit int) ([]*Clip, error)

	ApplyStats(ctx context.Context, db *gorm.DB, id snowflake.ID, update StatsUpdate) error
	BackfillPending(ctx context.Context, db *gorm.DB, id snowflake.ID, update StatsUpdate) error
	TouchStatsFetch(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	AddEarned(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, at time.Time) error
	MarkApproved(ctx context.Context, db *gorm.DB, id snowflake.ID, views int64, at time.Time) error
	MarkRejected(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error
}
