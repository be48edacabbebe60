package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// User is a creator or operator known to the chat front door.
type User struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	ExternalID       string          `gorm:"type:text;not null;uniqueIndex" json:"external_id"`
	Username         string          `gorm:"type:text" json:"username,omitempty"`
	Name             string          `gorm:"type:text" json:"name,omitempty"`
	Balance          decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"balance"`
	IsAdmin          bool            `gorm:"not null;default:false" json:"is_admin"`
	ReferralCode     string          `gorm:"type:text;not null;uniqueIndex" json:"referral_code"`
	ReferredByID     *snowflake.ID   `json:"referred_by_id,omitempty"`
	VerificationCode string          `gorm:"type:text;not null" json:"verification_code"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
