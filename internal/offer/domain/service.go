package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
)

type CreateOfferRequest struct {
	Name         string
	Title        string
	CPMRate      decimal.Decimal
	TotalBudget  decimal.Decimal
	Platforms    []string
	Requirements string
}

type ListOfferRequest struct {
	PageToken string
	PageSize  int32
	Active    *bool
}

type ListOfferFilter struct {
	Active *bool
}

type ListOfferResponse struct {
	pagination.PageInfo
	Offers []Offer `json:"offers"`
}

type Service interface {
	Create(ctx context.Context, req CreateOfferRequest) (Offer, error)
	GetByID(ctx context.Context, id snowflake.ID) (Offer, error)
	List(ctx context.Context, req ListOfferRequest) (ListOfferResponse, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) (Offer, error)
	Join(ctx context.Context, offerID, userID snowflake.ID) (Member, error)
	IsMember(ctx context.Context, offerID, userID snowflake.ID) (bool, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCPMRate  = errors.New("invalid_cpm_rate")
	ErrInvalidBudget   = errors.New("invalid_budget")
	ErrInvalidPlatform = errors.New("invalid_platform")
	ErrInvalidUser     = errors.New("invalid_user")
	ErrNotFound        = errors.New("not_found")
	ErrOfferInactive   = errors.New("offer_inactive")
	ErrBudgetExhausted = errors.New("budget_exhausted")
)
