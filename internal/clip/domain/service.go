package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
)

type ListClipRequest struct {
	PageToken string
	PageSize  int32
	UserID    snowflake.ID
	OfferID   snowflake.ID
	Status    Status
}

type ListClipFilter struct {
	UserID  snowflake.ID
	OfferID snowflake.ID
	Status  Status
}

type ListClipResponse struct {
	pagination.PageInfo
	Clips []Clip `json:"clips"`
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Clip, error)
	List(ctx context.Context, req ListClipRequest) (ListClipResponse, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrNotFound            = errors.New("not_found")
	ErrUnsupportedPlatform = errors.New("unsupported_platform")
)
