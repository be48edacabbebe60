package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeEarning    Type = "earning"
	TypeReferral   Type = "referral"
	TypeWithdrawal Type = "withdrawal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Source tags where an earning came from.
type Source string

const (
	SourceApproval Source = "approval"
	SourceAccrual  Source = "accrual"
)

// Transaction is one signed balance movement. Rows are append-only except
// for withdrawal status transitions.
type Transaction struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID      `gorm:"not null;index" json:"user_id"`
	ClipID    *snowflake.ID     `gorm:"index" json:"clip_id,omitempty"`
	Amount    decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	Type      Type              `gorm:"type:text;not null" json:"type"`
	Status    Status            `gorm:"type:text;not null" json:"status"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	DedupeKey *string           `gorm:"type:text;uniqueIndex" json:"-"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

// Reconciliation compares a stored balance to the one implied by the ledger.
type Reconciliation struct {
	UserID      snowflake.ID    `json:"user_id"`
	Balance     decimal.Decimal `json:"balance"`
	Expected    decimal.Decimal `json:"expected"`
	Earnings    decimal.Decimal `json:"earnings"`
	Referrals   decimal.Decimal `json:"referrals"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Consistent  bool            `json:"consistent"`
}
