package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/offer/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("offer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOfferRequest) (domain.Offer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Offer{}, domain.ErrInvalidName
	}
	if !req.CPMRate.IsPositive() {
		return domain.Offer{}, domain.ErrInvalidCPMRate
	}
	if !req.TotalBudget.IsPositive() {
		return domain.Offer{}, domain.ErrInvalidBudget
	}

	platforms, err := normalizePlatforms(req.Platforms)
	if err != nil {
		return domain.Offer{}, err
	}

	now := s.clock.Now()
	offer := domain.Offer{
		ID:           s.genID.Generate(),
		Name:         name,
		Title:        strings.TrimSpace(req.Title),
		CPMRate:      req.CPMRate,
		TotalBudget:  req.TotalBudget,
		PaidOut:      decimal.Zero,
		IsActive:     true,
		Platforms:    platforms,
		Requirements: strings.TrimSpace(req.Requirements),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &offer); err != nil {
		return domain.Offer{}, err
	}

	s.log.Info("offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("cpm_rate", offer.CPMRate.String()),
		zap.String("total_budget", offer.TotalBudget.String()),
	)
	return offer, nil
}

func normalizePlatforms(values []string) (datatypes.JSONSlice[string], error) {
	out := datatypes.JSONSlice[string]{}
	seen := make(map[clipdomain.Platform]struct{}, len(values))
	for _, value := range values {
		platform, ok := clipdomain.ParsePlatform(value)
		if !ok {
			return nil, domain.ErrInvalidPlatform
		}
		if _, dup := seen[platform]; dup {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, string(platform))
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Offer, error) {
	if id == 0 {
		return domain.Offer{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Offer{}, err
	}
	if item == nil {
		return domain.Offer{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListOfferRequest) (domain.ListOfferResponse, error) {
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	pageSize := int32(page.Size())

	items, err := s.repo.List(ctx, s.db, domain.ListOfferFilter{Active: req.Active}, page)
	if err != nil {
		return domain.ListOfferResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(offer *domain.Offer) string {
		return pagination.CursorFor(offer.ID.String(), offer.CreatedAt)
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	offers := make([]domain.Offer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		offers = append(offers, *item)
	}

	resp := domain.ListOfferResponse{Offers: offers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// SetActive pauses or resumes an offer. An offer whose budget is spent stays
// inactive.
func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (domain.Offer, error) {
	if id == 0 {
		return domain.Offer{}, domain.ErrInvalidID
	}

	var updated domain.Offer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		offer, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if offer == nil {
			return domain.ErrNotFound
		}
		if active && !offer.Remaining().IsPositive() {
			return domain.ErrBudgetExhausted
		}
		if offer.IsActive != active {
			now := s.clock.Now()
			if err := s.repo.SetActive(ctx, tx, id, active, now); err != nil {
				return err
			}
			offer.IsActive = active
			offer.UpdatedAt = now
		}
		updated = *offer
		return nil
	})
	if err != nil {
		return domain.Offer{}, err
	}

	s.log.Info("offer state changed",
		zap.String("offer_id", id.String()),
		zap.Bool("is_active", active),
	)
	return updated, nil
}

// Join registers a creator on an offer. Joining twice returns the original
// membership.
func (s *Service) Join(ctx context.Context, offerID, userID snowflake.ID) (domain.Member, error) {
	if offerID == 0 {
		return domain.Member{}, domain.ErrInvalidID
	}
	if userID == 0 {
		return domain.Member{}, domain.ErrInvalidUser
	}

	offer, err := s.repo.FindByID(ctx, s.db, offerID)
	if err != nil {
		return domain.Member{}, err
	}
	if offer == nil {
		return domain.Member{}, domain.ErrNotFound
	}

	existing, err := s.repo.FindMember(ctx, s.db, offerID, userID)
	if err != nil {
		return domain.Member{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	if !offer.IsActive {
		return domain.Member{}, domain.ErrOfferInactive
	}

	member := domain.Member{OfferID: offerID, UserID: userID, JoinedAt: s.clock.Now()}
	if err := s.repo.InsertMember(ctx, s.db, &member); err != nil {
		return domain.Member{}, err
	}
	stored, err := s.repo.FindMember(ctx, s.db, offerID, userID)
	if err != nil {
		return domain.Member{}, err
	}
	if stored == nil {
		return member, nil
	}
	return *stored, nil
}

func (s *Service) IsMember(ctx context.Context, offerID, userID snowflake.ID) (bool, error) {
	member, err := s.repo.FindMember(ctx, s.db, offerID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}
