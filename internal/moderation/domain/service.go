package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
)

type SubmitRequest struct {
	UserID   snowflake.ID
	OfferID  snowflake.ID
	VideoURL string
}

type SubmitResponse struct {
	ClipID           snowflake.ID        `json:"clip_id"`
	Platform         clipdomain.Platform `json:"platform"`
	VerificationCode string              `json:"verification_code"`
}

type ApproveRequest struct {
	ClipID snowflake.ID
	Views  int64
}

type ApproveResponse struct {
	ClipID          snowflake.ID    `json:"clip_id"`
	EarnedAmount    decimal.Decimal `json:"earned_amount"`
	BudgetExhausted bool            `json:"budget_exhausted"`
}

type RejectRequest struct {
	ClipID snowflake.ID
	Reason string
}

// Service moves clips from submission through the operator decision.
type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	Approve(ctx context.Context, req ApproveRequest) (ApproveResponse, error)
	Reject(ctx context.Context, req RejectRequest) error
}

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidURL    = errors.New("invalid_video_url")
	ErrInvalidViews  = errors.New("invalid_views")
	ErrMissingReason = errors.New("missing_reason")
	ErrOfferNotFound = errors.New("offer_not_found")
	ErrNotJoined     = errors.New("not_joined")
	ErrDuplicateClip = errors.New("duplicate_clip")
	ErrRateLimited   = errors.New("rate_limited")
	ErrNotFound      = errors.New("not_found")
	ErrInvalidState  = errors.New("invalid_state")

	ErrUnsupportedPlatform = clipdomain.ErrUnsupportedPlatform
	ErrOfferInactive       = offerdomain.ErrOfferInactive
)
