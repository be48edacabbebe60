package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Clip is a creator's submitted video for an offer.
type Clip struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID    `gorm:"not null;index" json:"user_id"`
	OfferID          snowflake.ID    `gorm:"not null;index" json:"offer_id"`
	VideoURL         string          `gorm:"type:text;not null" json:"video_url"`
	Platform         Platform        `gorm:"type:text;not null" json:"platform"`
	Status           Status          `gorm:"type:text;not null;index" json:"status"`
	Views            int64           `gorm:"not null;default:0" json:"views"`
	Likes            int64           `gorm:"not null;default:0" json:"likes"`
	Comments         int64           `gorm:"not null;default:0" json:"comments"`
	Title            string          `gorm:"type:text" json:"title,omitempty"`
	ThumbnailURL     string          `gorm:"type:text" json:"thumbnail_url,omitempty"`
	EarnedAmount     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"earned_amount"`
	IsVerified       bool            `gorm:"not null;default:false" json:"is_verified"`
	VerificationCode string          `gorm:"type:text;not null;uniqueIndex" json:"verification_code"`
	RejectionReason  *string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	LastStatsFetch   *time.Time      `json:"last_stats_fetch,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`
}

func (Clip) TableName() string { return "clips" }

// StatsUpdate carries the display fields refreshed from a stats provider.
// Views are only written when they grew.
type StatsUpdate struct {
	Views        int64
	Likes        int64
	Comments     int64
	Title        string
	ThumbnailURL string
	IsVerified   bool
	FetchedAt    time.Time
}
