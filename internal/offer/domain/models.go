package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Offer is a brand campaign paying a fixed rate per thousand views until its
// budget is spent.
type Offer struct {
	ID           snowflake.ID                `gorm:"primaryKey" json:"id"`
	Name         string                      `gorm:"type:text;not null" json:"name"`
	Title        string                      `gorm:"type:text" json:"title,omitempty"`
	CPMRate      decimal.Decimal             `gorm:"column:cpm_rate;type:numeric(20,4);not null" json:"cpm_rate"`
	TotalBudget  decimal.Decimal             `gorm:"type:numeric(20,4);not null" json:"total_budget"`
	PaidOut      decimal.Decimal             `gorm:"type:numeric(20,4);not null;default:0" json:"paid_out"`
	IsActive     bool                        `gorm:"not null;default:true;index" json:"is_active"`
	Platforms    datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"platforms"`
	Requirements string                      `gorm:"type:text" json:"requirements,omitempty"`
	CreatedAt    time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Offer) TableName() string { return "offers" }

// Remaining is the unspent budget, never negative.
func (o Offer) Remaining() decimal.Decimal {
	remaining := o.TotalBudget.Sub(o.PaidOut)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Accepts reports whether clips from the platform may be submitted. An offer
// without a platform list accepts every supported platform.
func (o Offer) Accepts(platform string) bool {
	if len(o.Platforms) == 0 {
		return true
	}
	for _, p := range o.Platforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

// Member records that a creator joined an offer.
type Member struct {
	OfferID  snowflake.ID `gorm:"primaryKey" json:"offer_id"`
	UserID   snowflake.ID `gorm:"primaryKey" json:"user_id"`
	JoinedAt time.Time    `gorm:"not null" json:"joined_at"`
}

func (Member) TableName() string { return "offer_members" }
