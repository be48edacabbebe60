package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"gorm.io/gorm"
)

type EarningEntry struct {
	UserID  snowflake.ID
	ClipID  snowflake.ID
	OfferID snowflake.ID
	Amount  decimal.Decimal
	Source  Source
	Views   int64
}

type ReferralCredit struct {
	ReferrerID snowflake.ID
	RefereeID  snowflake.ID
	Amount     decimal.Decimal
}

type WithdrawalRequest struct {
	UserID      snowflake.ID
	Amount      decimal.Decimal
	Destination string
}

type ListTransactionRequest struct {
	UserID    snowflake.ID
	Type      Type
	PageToken string
	PageSize  int32
}

type ListTransactionFilter struct {
	Type Type
}

type ListTransactionResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	// RecordEarningTx appends a completed earning inside the caller's
	// transaction. The caller owns the matching balance update.
	RecordEarningTx(ctx context.Context, tx *gorm.DB, entry EarningEntry) (Transaction, error)
	// CreditReferralTx pays a referral bonus once per referee. It reports
	// false when the bonus was already paid.
	CreditReferralTx(ctx context.Context, tx *gorm.DB, credit ReferralCredit) (bool, error)
	CreditReferral(ctx context.Context, credit ReferralCredit) (bool, error)
	RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (Transaction, error)
	ResolveWithdrawal(ctx context.Context, id snowflake.ID, approve bool) (Transaction, error)
	GetByID(ctx context.Context, id snowflake.ID) (Transaction, error)
	ListByUser(ctx context.Context, req ListTransactionRequest) (ListTransactionResponse, error)
	Reconcile(ctx context.Context, userID snowflake.ID) (Reconciliation, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidClip         = errors.New("invalid_clip")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidType         = errors.New("invalid_type")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidState        = errors.New("invalid_state")
)
