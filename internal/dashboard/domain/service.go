package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ClipStats aggregates the clips of one offer or one creator.
type ClipStats struct {
	ByStatus   map[string]int64 `json:"by_status"`
	TotalViews int64            `json:"total_views"`
	Verified   int64            `json:"verified"`
}

type OfferSummary struct {
	OfferID     snowflake.ID    `json:"offer_id"`
	Name        string          `json:"name"`
	IsActive    bool            `json:"is_active"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	PaidOut     decimal.Decimal `json:"paid_out"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percent_used"`
	Clips       ClipStats       `json:"clips"`
}

type UserDashboard struct {
	UserID             snowflake.ID    `json:"user_id"`
	Balance            decimal.Decimal `json:"balance"`
	TotalEarned        decimal.Decimal `json:"total_earned"`
	TotalReferral      decimal.Decimal `json:"total_referral"`
	TotalWithdrawn     decimal.Decimal `json:"total_withdrawn"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	Clips              ClipStats       `json:"clips"`
	Reconciled         bool            `json:"reconciled"`
}

type Overview struct {
	ActiveOffers   int64           `json:"active_offers"`
	InactiveOffers int64           `json:"inactive_offers"`
	TotalBudget    decimal.Decimal `json:"total_budget"`
	TotalPaidOut   decimal.Decimal `json:"total_paid_out"`
	PendingClips   int64           `json:"pending_clips"`
	Users          int64           `json:"users"`
}

type Service interface {
	OfferSummary(ctx context.Context, offerID snowflake.ID) (OfferSummary, error)
	UserDashboard(ctx context.Context, userID snowflake.ID) (UserDashboard, error)
	Overview(ctx context.Context) (Overview, error)
}

var (
	ErrInvalidID = errors.New("invalid_id")
	ErrNotFound  = errors.New("not_found")
)
