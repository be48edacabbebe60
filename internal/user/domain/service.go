package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	ExternalID   string
	Username     string
	Name         string
	ReferralCode string
}

type RegisterResponse struct {
	User    User `json:"user"`
	Created bool `json:"created"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (User, error)
	GetByExternalID(ctx context.Context, externalID string) (User, error)
	SetAdmin(ctx context.Context, id snowflake.ID, admin bool) (User, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidExternalID = errors.New("invalid_external_id")
	ErrNotFound          = errors.New("not_found")
)
