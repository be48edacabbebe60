package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*User, error)
	FindByReferralCode(ctx context.Context, db *gorm.DB, code string) (*User, error)
	ListAdmins(ctx context.Context, db *gorm.DB) ([]*User, error)
	SetAdmin(ctx context.Context, db *gorm.DB, id snowflake.ID, admin bool, at time.Time) error
	// AddBalance applies a signed delta to the balance.
	AddBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, delta decimal.Decimal, at time.Time) error
}
