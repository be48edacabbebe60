package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("clip.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Clip, error) {
	if id == 0 {
		return domain.Clip{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Clip{}, err
	}
	if item == nil {
		return domain.Clip{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClipRequest) (domain.ListClipResponse, error) {
	switch req.Status {
	case "", domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
	default:
		return domain.ListClipResponse{}, domain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	pageSize := int32(page.Size())

	items, err := s.repo.List(ctx, s.db, domain.ListClipFilter{
		UserID:  req.UserID,
		OfferID: req.OfferID,
		Status:  req.Status,
	}, page)
	if err != nil {
		return domain.ListClipResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(clip *domain.Clip) string {
		return pagination.CursorFor(clip.ID.String(), clip.CreatedAt)
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	clips := make([]domain.Clip, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clips = append(clips, *item)
	}

	resp := domain.ListClipResponse{Clips: clips}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
