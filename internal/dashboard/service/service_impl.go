package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/dashboard/domain"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Offers     offerdomain.Repository
	Ledger     ledgerdomain.Service
	LedgerRepo ledgerdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	offers     offerdomain.Repository
	ledger     ledgerdomain.Service
	ledgerRepo ledgerdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("dashboard.service"),
		offers:     p.Offers,
		ledger:     p.Ledger,
		ledgerRepo: p.LedgerRepo,
	}
}

func (s *Service) OfferSummary(ctx context.Context, offerID snowflake.ID) (domain.OfferSummary, error) {
	if offerID == 0 {
		return domain.OfferSummary{}, domain.ErrInvalidID
	}

	var (
		offer *offerdomain.Offer
		clips domain.ClipStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		offer, err = s.offers.FindByID(gctx, s.db, offerID)
		return err
	})
	g.Go(func() error {
		var err error
		clips, err = s.clipStats(gctx, "offer_id = ?", offerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.OfferSummary{}, err
	}
	if offer == nil {
		return domain.OfferSummary{}, domain.ErrNotFound
	}

	return domain.OfferSummary{
		OfferID:     offer.ID,
		Name:        offer.Name,
		IsActive:    offer.IsActive,
		TotalBudget: offer.TotalBudget,
		PaidOut:     offer.PaidOut,
		Remaining:   offer.Remaining(),
		PercentUsed: percentUsed(offer.PaidOut, offer.TotalBudget),
		Clips:       clips,
	}, nil
}

func percentUsed(paidOut, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return paidOut.Mul(hundred).Div(total).Round(2)
}

func (s *Service) UserDashboard(ctx context.Context, userID snowflake.ID) (domain.UserDashboard, error) {
	if userID == 0 {
		return domain.UserDashboard{}, domain.ErrInvalidID
	}

	var (
		rec    ledgerdomain.Reconciliation
		totals ledgerdomain.Totals
		clips  domain.ClipStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = s.ledger.Reconcile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.ledgerRepo.SumByUser(gctx, s.db, userID)
		return err
	})
	g.Go(func() error {
		var err error
		clips, err = s.clipStats(gctx, "user_id = ?", userID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ledgerdomain.ErrNotFound) {
			return domain.UserDashboard{}, domain.ErrNotFound
		}
		return domain.UserDashboard{}, err
	}

	return domain.UserDashboard{
		UserID:             userID,
		Balance:            rec.Balance,
		TotalEarned:        rec.Earnings,
		TotalReferral:      rec.Referrals,
		TotalWithdrawn:     rec.Withdrawals,
		PendingWithdrawals: totals.Pending,
		Clips:              clips,
		Reconciled:         rec.Consistent,
	}, nil
}

type clipStatusRow struct {
	Status   string
	Clips    int64
	Views    int64
	Verified int64
}

func (s *Service) clipStats(ctx context.Context, where string, args ...any) (domain.ClipStats, error) {
	var rows []clipStatusRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT status,
		        COUNT(1) AS clips,
		        COALESCE(SUM(views), 0) AS views,
		        COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0) AS verified
		 FROM clips
		 WHERE `+where+`
		 GROUP BY status`,
		args...,
	).Scan(&rows).Error
	if err != nil {
		return domain.ClipStats{}, err
	}

	out := domain.ClipStats{ByStatus: map[string]int64{
		string(clipdomain.StatusPending):  0,
		string(clipdomain.StatusApproved): 0,
		string(clipdomain.StatusRejected): 0,
	}}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.Clips
		out.TotalViews += row.Views
		out.Verified += row.Verified
	}
	return out, nil
}

type offerTotalsRow struct {
	Active      int64
	Inactive    int64
	TotalBudget decimal.Decimal
	PaidOut     decimal.Decimal
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	var (
		offers  offerTotalsRow
		pending int64
		users   int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Raw(
			`SELECT COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active,
			        COALESCE(SUM(CASE WHEN is_active THEN 0 ELSE 1 END), 0) AS inactive,
			        COALESCE(SUM(total_budget), 0) AS total_budget,
			        COALESCE(SUM(paid_out), 0) AS paid_out
			 FROM offers`,
		).Scan(&offers).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Raw(
			`SELECT COUNT(1) FROM clips WHERE status = ?`,
			clipdomain.StatusPending,
		).Scan(&pending).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Raw(`SELECT COUNT(1) FROM users`).Scan(&users).Error
	})
	if err := g.Wait(); err != nil {
		return domain.Overview{}, err
	}

	return domain.Overview{
		ActiveOffers:   offers.Active,
		InactiveOffers: offers.Inactive,
		TotalBudget:    offers.TotalBudget,
		TotalPaidOut:   offers.PaidOut,
		PendingClips:   pending,
		Users:          users,
	}, nil
}
