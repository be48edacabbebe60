package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	"github.com/smallbiznis/cliprail/internal/moderation/domain"
	"github.com/smallbiznis/cliprail/internal/notify"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	"github.com/smallbiznis/cliprail/internal/payout"
	"github.com/smallbiznis/cliprail/internal/ratelimit"
	"github.com/smallbiznis/cliprail/internal/stats"
	"github.com/smallbiznis/cliprail/internal/verification"
	"github.com/smallbiznis/cliprail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxCodeAttempts = 3
	backfillTimeout = 30 * time.Second
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle `optional:"true"`
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Clips      clipdomain.Repository
	Offers     offerdomain.Repository
	Poster     *payout.Poster
	Stats      stats.Provider
	Limiter    *ratelimit.SubmissionLimiter `optional:"true"`
	Notifier   notify.Notifier              `optional:"true"`
	ObsMetrics *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	clips      clipdomain.Repository
	offers     offerdomain.Repository
	poster     *payout.Poster
	stats      stats.Provider
	limiter    *ratelimit.SubmissionLimiter
	notifier   notify.Notifier
	obsMetrics *obsmetrics.Metrics

	backfillTimeout time.Duration
	backfills       sync.WaitGroup
}

func New(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notify.NoOp()
	}
	timeout := p.Cfg.Accrual.FetchTimeout
	if timeout <= 0 {
		timeout = backfillTimeout
	}
	svc := &Service{
		db:              p.DB,
		log:             p.Log.Named("moderation.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		clips:           p.Clips,
		offers:          p.Offers,
		poster:          p.Poster,
		stats:           p.Stats,
		limiter:         p.Limiter,
		notifier:        notifier,
		obsMetrics:      p.ObsMetrics,
		backfillTimeout: timeout,
	}
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: svc.drainBackfills,
		})
	}
	return svc
}

// drainBackfills waits for in-flight backfills so none writes after the
// database pool closes.
func (s *Service) drainBackfills(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.backfills.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("clip stats backfills still running at shutdown", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResponse, error) {
	if req.UserID == 0 || req.OfferID == 0 {
		return domain.SubmitResponse{}, domain.ErrInvalidID
	}
	rawURL := strings.TrimSpace(req.VideoURL)
	if rawURL == "" {
		return domain.SubmitResponse{}, domain.ErrInvalidURL
	}

	if err := s.checkRate(ctx, req.UserID); err != nil {
		return domain.SubmitResponse{}, err
	}

	offer, err := s.offers.FindByID(ctx, s.db, req.OfferID)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if offer == nil {
		return domain.SubmitResponse{}, domain.ErrOfferNotFound
	}
	member, err := s.offers.FindMember(ctx, s.db, offer.ID, req.UserID)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if member == nil {
		return domain.SubmitResponse{}, domain.ErrNotJoined
	}
	if !offer.IsActive {
		return domain.SubmitResponse{}, domain.ErrOfferInactive
	}

	platform, err := clipdomain.ClassifyPlatform(rawURL)
	if err != nil {
		s.obsMetrics.RecordClipSubmission(ctx, "unknown", "unsupported")
		return domain.SubmitResponse{}, err
	}
	if !offer.Accepts(string(platform)) {
		s.obsMetrics.RecordClipSubmission(ctx, string(platform), "unsupported")
		return domain.SubmitResponse{}, domain.ErrUnsupportedPlatform
	}

	videoURL := clipdomain.NormalizeURL(rawURL)
	exists, err := s.clips.ExistsForOffer(ctx, s.db, offer.ID, videoURL)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if exists {
		s.obsMetrics.RecordClipSubmission(ctx, string(platform), "duplicate")
		return domain.SubmitResponse{}, domain.ErrDuplicateClip
	}

	clip, err := s.insertClip(ctx, req.UserID, offer.ID, videoURL, platform)
	if err != nil {
		return domain.SubmitResponse{}, err
	}

	s.obsMetrics.RecordClipSubmission(ctx, string(platform), "accepted")
	s.log.Info("clip submitted",
		zap.String("clip_id", clip.ID.String()),
		zap.String("offer_id", offer.ID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("platform", string(platform)),
	)

	s.backfills.Add(1)
	go s.backfill(clip.ID, clip.VideoURL)

	return domain.SubmitResponse{
		ClipID:           clip.ID,
		Platform:         platform,
		VerificationCode: clip.VerificationCode,
	}, nil
}

// checkRate fails open when the limiter backend errors.
func (s *Service) checkRate(ctx context.Context, userID snowflake.ID) error {
	if !s.limiter.Enabled() {
		return nil
	}
	res, err := s.limiter.AllowUser(ctx, userID.String())
	if err != nil {
		s.log.Warn("submission rate limit unavailable", zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	if !res.Allowed {
		s.obsMetrics.RecordRateLimitDenied(ctx, "clip_submit", "user")
		return domain.ErrRateLimited
	}
	return nil
}

func (s *Service) insertClip(ctx context.Context, userID, offerID snowflake.ID, videoURL string, platform clipdomain.Platform) (*clipdomain.Clip, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := verification.NewCode()
		if err != nil {
			return nil, err
		}
		now := s.clock.Now()
		clip := &clipdomain.Clip{
			ID:               s.genID.Generate(),
			UserID:           userID,
			OfferID:          offerID,
			VideoURL:         videoURL,
			Platform:         platform,
			Status:           clipdomain.StatusPending,
			EarnedAmount:     decimal.Zero,
			VerificationCode: code,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		err = s.clips.Insert(ctx, s.db, clip)
		if err == nil {
			return clip, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// Either a concurrent submission of the same URL or a code collision.
		exists, existsErr := s.clips.ExistsForOffer(ctx, s.db, offerID, videoURL)
		if existsErr != nil {
			return nil, existsErr
		}
		if exists {
			return nil, domain.ErrDuplicateClip
		}
	}
	return nil, errors.New("verification code space exhausted")
}

// backfill fills display stats for a pending clip so moderators see real
// numbers. It must never affect the submission outcome.
func (s *Service) backfill(clipID snowflake.ID, videoURL string) {
	defer s.backfills.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.backfillTimeout)
	defer cancel()

	snapshot, err := stats.Fetch(ctx, s.stats, videoURL)
	if err != nil {
		s.log.Warn("clip stats backfill failed", zap.String("clip_id", clipID.String()), zap.Error(err))
		return
	}
	err = s.clips.BackfillPending(ctx, s.db, clipID, clipdomain.StatsUpdate{
		Views:        snapshot.Views,
		Likes:        snapshot.Likes,
		Comments:     snapshot.Comments,
		Title:        snapshot.Title,
		ThumbnailURL: snapshot.ThumbnailURL,
		FetchedAt:    s.clock.Now(),
	})
	if err != nil {
		s.log.Warn("clip stats backfill update failed", zap.String("clip_id", clipID.String()), zap.Error(err))
	}
}

// Approve pays the initial views through the same budget cap as accrual.
func (s *Service) Approve(ctx context.Context, req domain.ApproveRequest) (domain.ApproveResponse, error) {
	if req.ClipID == 0 {
		return domain.ApproveResponse{}, domain.ErrInvalidID
	}
	if req.Views < 0 {
		return domain.ApproveResponse{}, domain.ErrInvalidViews
	}

	var (
		clip    *clipdomain.Clip
		outcome payout.Outcome
	)
	err := payout.Transact(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		clip, err = s.lockPending(ctx, tx, req.ClipID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.clips.MarkApproved(ctx, tx, clip.ID, req.Views, now); err != nil {
			return err
		}
		outcome, err = s.poster.Post(ctx, tx, payout.Grant{
			ClipID:        clip.ID,
			UserID:        clip.UserID,
			OfferID:       clip.OfferID,
			PreviousViews: 0,
			NewViews:      req.Views,
			Source:        ledgerdomain.SourceApproval,
		})
		if err != nil {
			return err
		}
		// Approving against a paused offer would consume the view baseline
		// without paying it, so the clip stays pending until the offer resumes.
		if outcome.Kind == payout.OutcomeInactive && outcome.Remaining.IsPositive() {
			return domain.ErrOfferInactive
		}
		return nil
	})
	if err != nil {
		return domain.ApproveResponse{}, err
	}

	exhausted := outcome.Kind == payout.OutcomeBudgetExhausted
	s.obsMetrics.RecordModerationDecision(ctx, "approved")
	s.log.Info("clip approved",
		zap.String("clip_id", clip.ID.String()),
		zap.Int64("views", req.Views),
		zap.String("earned", outcome.Payable.String()),
		zap.String("outcome", string(outcome.Kind)),
	)

	s.notifier.Notify(ctx, clip.UserID, notify.EventClipApproved, map[string]any{
		"clip_id":   clip.ID.String(),
		"video_url": clip.VideoURL,
		"views":     req.Views,
		"earned":    outcome.Payable.String(),
	})
	if exhausted {
		s.notifier.Notify(ctx, notify.Admins, notify.EventOfferExhausted, map[string]any{
			"offer_id": clip.OfferID.String(),
			"clip_id":  clip.ID.String(),
		})
	}

	return domain.ApproveResponse{
		ClipID:          clip.ID,
		EarnedAmount:    outcome.Payable,
		BudgetExhausted: exhausted,
	}, nil
}

func (s *Service) Reject(ctx context.Context, req domain.RejectRequest) error {
	if req.ClipID == 0 {
		return domain.ErrInvalidID
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.ErrMissingReason
	}

	var clip *clipdomain.Clip
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		clip, err = s.lockPending(ctx, tx, req.ClipID)
		if err != nil {
			return err
		}
		return s.clips.MarkRejected(ctx, tx, clip.ID, reason, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.obsMetrics.RecordModerationDecision(ctx, "rejected")
	s.log.Info("clip rejected", zap.String("clip_id", clip.ID.String()), zap.String("reason", reason))
	s.notifier.Notify(ctx, clip.UserID, notify.EventClipRejected, map[string]any{
		"clip_id":   clip.ID.String(),
		"video_url": clip.VideoURL,
		"reason":    reason,
	})
	return nil
}

func (s *Service) lockPending(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*clipdomain.Clip, error) {
	clip, err := s.clips.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if clip == nil {
		return nil, domain.ErrNotFound
	}
	if clip.Status != clipdomain.StatusPending {
		return nil, domain.ErrInvalidState
	}
	return clip, nil
}
