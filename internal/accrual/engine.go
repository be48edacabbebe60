// Package accrual polls public stats for approved clips and turns view growth
// into earnings under each offer's budget.
package accrual

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	"github.com/smallbiznis/cliprail/internal/notify"
	"github.com/smallbiznis/cliprail/internal/observability/metrics"
	"github.com/smallbiznis/cliprail/internal/payout"
	"github.com/smallbiznis/cliprail/internal/stats"
	"github.com/smallbiznis/cliprail/internal/verification"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

// CycleResult summarizes one pass over the approved clips.
type CycleResult struct {
	ClipsUpdated       int             `json:"clips_updated"`
	NewlyVerified      int             `json:"newly_verified"`
	TotalEarningsAdded decimal.Decimal `json:"total_earnings_added"`
	Skipped            int             `json:"skipped"`
	Failed             int             `json:"failed"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Clips    clipdomain.Repository
	Poster   *payout.Poster
	Stats    stats.Provider
	Notifier notify.Notifier `optional:"true"`
}

type Engine struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	clips    clipdomain.Repository
	poster   *payout.Poster
	stats    stats.Provider
	notifier notify.Notifier
	metrics  *metrics.AccrualMetrics

	limiter      *rate.Limiter
	batchSize    int
	fetchTimeout time.Duration
}

func New(p Params) *Engine {
	cfg := p.Cfg.Accrual
	notifier := p.Notifier
	if notifier == nil {
		notifier = notify.NoOp()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = stats.DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.FetchSpacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.FetchSpacing), 1)
	}

	return &Engine{
		db:           p.DB,
		log:          p.Log.Named("accrual.engine"),
		clock:        p.Clock,
		clips:        p.Clips,
		poster:       p.Poster,
		stats:        p.Stats,
		notifier:     notifier,
		metrics:      metrics.Accrual(),
		limiter:      limiter,
		batchSize:    batchSize,
		fetchTimeout: fetchTimeout,
	}
}

// RunCycle visits every approved clip once. Per-clip failures are counted and
// logged; only listing errors and cancellation end the cycle early.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	result := CycleResult{TotalEarningsAdded: decimal.Zero}
	e.log.Info("accrual.cycle.start", zap.Int("batch_size", e.batchSize))

	err := e.scan(ctx, &result)
	duration := time.Since(start)
	e.metrics.ObserveCycle(duration)

	fields := []zap.Field{
		zap.Int("clips_updated", result.ClipsUpdated),
		zap.Int("newly_verified", result.NewlyVerified),
		zap.String("earnings_added", result.TotalEarningsAdded.String()),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", duration),
	}
	if err != nil {
		e.log.Warn("accrual.cycle.aborted", append(fields, zap.Error(err))...)
		return result, err
	}
	e.log.Info("accrual.cycle.finish", fields...)
	return result, nil
}

func (e *Engine) scan(ctx context.Context, result *CycleResult) error {
	var cursor *clipdomain.AccrualCursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := e.clips.ListApproved(ctx, e.db, clipdomain.SupportedPlatforms(), cursor, e.batchSize)
		if err != nil {
			return err
		}
		for _, clip := range batch {
			if err := e.visit(ctx, clip, result); err != nil {
				return err
			}
		}
		if len(batch) < e.batchSize {
			return nil
		}
		last := batch[len(batch)-1]
		cursor = &clipdomain.AccrualCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

// visit returns an error only when the cycle must stop.
func (e *Engine) visit(ctx context.Context, clip *clipdomain.Clip, result *CycleResult) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	snapshot, err := stats.Fetch(fetchCtx, e.stats, clip.VideoURL)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.skip(ctx, clip, err, result)
		return nil
	}

	outcome, err := e.apply(ctx, clip, snapshot)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Failed++
		e.metrics.IncClip(metrics.ClipResultFailed)
		e.log.Error("accrual.clip.failed",
			zap.String("clip_id", clip.ID.String()),
			zap.String("offer_id", clip.OfferID.String()),
			zap.String("error_type", metrics.ClassifySchedulerErrorType(err)),
			zap.Bool("retryable", metrics.IsSchedulerErrorRetryable(err)),
			zap.Error(err),
		)
		return nil
	}
	if outcome.gone {
		return nil
	}

	result.ClipsUpdated++
	result.TotalEarningsAdded = result.TotalEarningsAdded.Add(outcome.payable)
	e.metrics.IncClip(outcome.result)
	if outcome.payable.IsPositive() {
		e.metrics.AddEarnings(outcome.payable.InexactFloat64())
	}

	if outcome.newlyVerified {
		result.NewlyVerified++
		e.notifier.Notify(ctx, clip.UserID, notify.EventClipVerified, map[string]any{
			"clip_id":   clip.ID.String(),
			"offer_id":  clip.OfferID.String(),
			"video_url": clip.VideoURL,
		})
	}
	if outcome.kind == payout.OutcomeBudgetExhausted {
		e.metrics.IncBudgetExhausted()
		e.notifier.Notify(ctx, notify.Admins, notify.EventOfferExhausted, map[string]any{
			"offer_id": clip.OfferID.String(),
			"clip_id":  clip.ID.String(),
		})
	}
	return nil
}

func (e *Engine) skip(ctx context.Context, clip *clipdomain.Clip, cause error, result *CycleResult) {
	result.Skipped++
	e.metrics.IncClip(metrics.ClipResultUnavailable)

	level := e.log.Debug
	if !errors.Is(cause, stats.ErrUnavailable) {
		level = e.log.Warn
	}
	level("accrual.clip.stats_unavailable",
		zap.String("clip_id", clip.ID.String()),
		zap.String("video_url", clip.VideoURL),
		zap.Error(cause),
	)

	if err := e.clips.TouchStatsFetch(ctx, e.db, clip.ID, e.clock.Now()); err != nil {
		e.log.Warn("failed to record stats fetch", zap.String("clip_id", clip.ID.String()), zap.Error(err))
	}
}

type clipOutcome struct {
	gone          bool
	kind          payout.OutcomeKind
	payable       decimal.Decimal
	newlyVerified bool
	result        string
}

// apply re-reads the clip under lock so previous views and verification come
// from the committed row, not the page snapshot.
func (e *Engine) apply(ctx context.Context, clip *clipdomain.Clip, snapshot *stats.Stats) (clipOutcome, error) {
	var out clipOutcome
	err := payout.Transact(ctx, e.db, func(tx *gorm.DB) error {
		out = clipOutcome{payable: decimal.Zero}

		lockStart := time.Now()
		locked, err := e.clips.FindByIDForUpdate(ctx, tx, clip.ID)
		metrics.Scheduler().ObserveDBLockWait(metrics.LockResourceClip, time.Since(lockStart))
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != clipdomain.StatusApproved {
			out.gone = true
			return nil
		}

		verified := verification.IsVerified(locked.IsVerified, locked.VerificationCode, snapshot.Description)
		out.newlyVerified = verified && !locked.IsVerified

		switch {
		case !verified:
			out.result = metrics.ClipResultUnverified
		default:
			if snapshot.Views < locked.Views {
				e.log.Debug("view count regressed",
					zap.String("clip_id", locked.ID.String()),
					zap.Int64("stored", locked.Views),
					zap.Int64("fetched", snapshot.Views),
				)
			}
			posted, err := e.poster.Post(ctx, tx, payout.Grant{
				ClipID:        locked.ID,
				UserID:        locked.UserID,
				OfferID:       locked.OfferID,
				PreviousViews: locked.Views,
				NewViews:      snapshot.Views,
				Source:        ledgerdomain.SourceAccrual,
			})
			if err != nil {
				return err
			}
			out.kind = posted.Kind
			out.payable = posted.Payable
			out.result = resultFor(posted.Kind)
		}

		return e.clips.ApplyStats(ctx, tx, locked.ID, clipdomain.StatsUpdate{
			Views:        snapshot.Views,
			Likes:        snapshot.Likes,
			Comments:     snapshot.Comments,
			Title:        snapshot.Title,
			ThumbnailURL: snapshot.ThumbnailURL,
			IsVerified:   verified,
			FetchedAt:    e.clock.Now(),
		})
	})
	return out, err
}

func resultFor(kind payout.OutcomeKind) string {
	switch kind {
	case payout.OutcomeApplied:
		return metrics.ClipResultApplied
	case payout.OutcomeBudgetExhausted:
		return metrics.ClipResultBudgetExhausted
	case payout.OutcomeInactive:
		return metrics.ClipResultInactive
	default:
		return metrics.ClipResultRefreshed
	}
}
