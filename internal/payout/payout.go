// Package payout is the one place clip earnings move money. Callers run Post
// inside their own transaction so the offer, the creator balance, the clip and
// the ledger row move together.
package payout

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/earnings"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OutcomeKind string

const (
	OutcomeApplied         OutcomeKind = "applied"
	OutcomeBudgetExhausted OutcomeKind = "budget_exhausted"
	OutcomeInactive        OutcomeKind = "inactive"
	OutcomeNothing         OutcomeKind = "nothing"
)

// Grant asks for the earnings of a clip growing from PreviousViews to NewViews.
type Grant struct {
	ClipID        snowflake.ID
	UserID        snowflake.ID
	OfferID       snowflake.ID
	PreviousViews int64
	NewViews      int64
	Source        ledgerdomain.Source
}

// Outcome reports what Post did. Payable may be positive for both Applied and
// BudgetExhausted; the latter also means the offer was deactivated.
// Remaining is only set for Inactive and is positive when an operator paused
// an offer that still has budget.
type Outcome struct {
	Kind      OutcomeKind
	Payable   decimal.Decimal
	Remaining decimal.Decimal
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Offers offerdomain.Repository
	Users  userdomain.Repository
	Clips  clipdomain.Repository
	Ledger ledgerdomain.Service
}

type Poster struct {
	log    *zap.Logger
	clock  clock.Clock
	offers offerdomain.Repository
	users  userdomain.Repository
	clips  clipdomain.Repository
	ledger ledgerdomain.Service
}

func New(p Params) *Poster {
	return &Poster{
		log:    p.Log.Named("payout.poster"),
		clock:  p.Clock,
		offers: p.Offers,
		users:  p.Users,
		clips:  p.Clips,
		ledger: p.Ledger,
	}
}

// Post must run inside tx. Offers are locked one row at a time, so posts for
// different offers never wait on each other.
func (p *Poster) Post(ctx context.Context, tx *gorm.DB, grant Grant) (Outcome, error) {
	lockStart := time.Now()
	offer, err := p.offers.FindByIDForUpdate(ctx, tx, grant.OfferID)
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceOffer, time.Since(lockStart))
	if err != nil {
		return Outcome{}, err
	}
	if offer == nil {
		return Outcome{}, offerdomain.ErrNotFound
	}
	if !offer.IsActive {
		return Outcome{
			Kind:      OutcomeInactive,
			Payable:   decimal.Zero,
			Remaining: offer.TotalBudget.Sub(offer.PaidOut),
		}, nil
	}

	accrual := earnings.Compute(grant.PreviousViews, grant.NewViews, offer.CPMRate, offer.PaidOut, offer.TotalBudget)
	now := p.clock.Now()

	if accrual.Payable.IsPositive() {
		if err := p.users.AddBalance(ctx, tx, grant.UserID, accrual.Payable, now); err != nil {
			return Outcome{}, err
		}
		if err := p.offers.AddPaidOut(ctx, tx, offer.ID, accrual.Payable, now); err != nil {
			return Outcome{}, err
		}
		if err := p.clips.AddEarned(ctx, tx, grant.ClipID, accrual.Payable, now); err != nil {
			return Outcome{}, err
		}
		if _, err := p.ledger.RecordEarningTx(ctx, tx, ledgerdomain.EarningEntry{
			UserID:  grant.UserID,
			ClipID:  grant.ClipID,
			OfferID: offer.ID,
			Amount:  accrual.Payable,
			Source:  grant.Source,
			Views:   grant.NewViews,
		}); err != nil {
			return Outcome{}, err
		}
	}

	if accrual.CappedAtBudget {
		if err := p.offers.SetActive(ctx, tx, offer.ID, false, now); err != nil {
			return Outcome{}, err
		}
		p.log.Info("offer budget exhausted",
			zap.String("offer_id", offer.ID.String()),
			zap.String("clip_id", grant.ClipID.String()),
			zap.String("payable", accrual.Payable.String()),
		)
		return Outcome{Kind: OutcomeBudgetExhausted, Payable: accrual.Payable}, nil
	}
	if accrual.Payable.IsPositive() {
		return Outcome{Kind: OutcomeApplied, Payable: accrual.Payable}, nil
	}
	return Outcome{Kind: OutcomeNothing, Payable: decimal.Zero}, nil
}
