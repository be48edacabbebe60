package accrual

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/cliprail/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/cliprail/internal/ledger/service"
	"github.com/smallbiznis/cliprail/internal/notify"
	"github.com/smallbiznis/cliprail/internal/payout"
	"github.com/smallbiznis/cliprail/internal/stats"
	"github.com/smallbiznis/cliprail/internal/testutil"
	"github.com/smallbiznis/cliprail/internal/testutil/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStats struct {
	mu    sync.Mutex
	byURL map[string]*stats.Stats
}

func (f *fakeStats) Name() string { return "fake" }

func (f *fakeStats) set(url string, views int64, description string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byURL[url] = &stats.Stats{Views: views, Likes: views / 10, Description: description, Title: "clip"}
}

func (f *fakeStats) FetchVideoStats(_ context.Context, url string) (*stats.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byURL[url]
	if !ok {
		return nil, stats.ErrUnavailable
	}
	copied := *s
	return &copied, nil
}

type sentEvent struct {
	userID snowflake.ID
	event  notify.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingNotifier) Notify(_ context.Context, userID snowflake.ID, event notify.Event, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{userID: userID, event: event})
}

func (r *recordingNotifier) count(event notify.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type fixture struct {
	engine   *Engine
	seed     *seed.Seeder
	stats    *fakeStats
	notifier *recordingNotifier
	clock    *clock.FakeClock
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	s := seed.New(db, node, now)

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  ledgerrepository.Provide(),
		Users: s.Users,
	})
	poster := payout.New(payout.Params{
		Log:    zap.NewNop(),
		Clock:  clk,
		Offers: s.Offers,
		Users:  s.Users,
		Clips:  s.Clips,
		Ledger: ledger,
	})
	fs := &fakeStats{byURL: map[string]*stats.Stats{}}
	notifier := &recordingNotifier{}
	engine := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Cfg: config.Config{Accrual: config.AccrualConfig{
			BatchSize:    batchSize,
			FetchTimeout: time.Second,
		}},
		Clips:    s.Clips,
		Poster:   poster,
		Stats:    fs,
		Notifier: notifier,
	})
	return &fixture{engine: engine, seed: s, stats: fs, notifier: notifier, clock: clk}
}

func (f *fixture) run(t *testing.T) CycleResult {
	t.Helper()
	res, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	return res
}

func TestRunCycleBudgetScenarios(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 500, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Verified: true})

	f.stats.set(clip.VideoURL, 1000, "")
	res := f.run(t)
	assert.Equal(t, 1, res.ClipsUpdated)
	assert.True(t, res.TotalEarningsAdded.Equal(decimal.NewFromInt(500)))
	o := f.seed.ReloadOffer(t, offer.ID)
	assert.True(t, o.PaidOut.Equal(decimal.NewFromInt(500)))
	assert.True(t, o.IsActive)

	f.stats.set(clip.VideoURL, 3000, "")
	res = f.run(t)
	assert.True(t, res.TotalEarningsAdded.Equal(decimal.NewFromInt(500)))
	o = f.seed.ReloadOffer(t, offer.ID)
	assert.True(t, o.PaidOut.Equal(decimal.NewFromInt(1000)))
	assert.False(t, o.IsActive)
	assert.True(t, f.seed.ReloadClip(t, clip.ID).EarnedAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 1, f.notifier.count(notify.EventOfferExhausted))

	f.stats.set(clip.VideoURL, 5000, "")
	res = f.run(t)
	assert.Equal(t, 1, res.ClipsUpdated)
	assert.True(t, res.TotalEarningsAdded.IsZero())

	refreshed := f.seed.ReloadClip(t, clip.ID)
	assert.Equal(t, int64(5000), refreshed.Views, "display refresh on inactive offer")
	assert.Equal(t, int64(500), refreshed.Likes)
	assert.True(t, f.seed.ReloadUser(t, user.ID).Balance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(2), f.seed.CountTransactions(t, user.ID, string(ledgerdomain.TypeEarning)))
}

func TestRunCycleIsIdempotent(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 2, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Views: 1000, Verified: true})

	f.stats.set(clip.VideoURL, 6000, "")
	f.run(t)
	require.Equal(t, int64(1), f.seed.CountTransactions(t, user.ID, string(ledgerdomain.TypeEarning)))

	res := f.run(t)
	assert.True(t, res.TotalEarningsAdded.IsZero())
	assert.Equal(t, int64(1), f.seed.CountTransactions(t, user.ID, string(ledgerdomain.TypeEarning)))
	assert.True(t, f.seed.ReloadUser(t, user.ID).Balance.Equal(decimal.NewFromInt(10)))
}

func TestRunCycleVerification(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 1, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID})

	f.stats.set(clip.VideoURL, 2000, "no code here")
	res := f.run(t)
	assert.Equal(t, 0, res.NewlyVerified)
	assert.True(t, res.TotalEarningsAdded.IsZero())
	got := f.seed.ReloadClip(t, clip.ID)
	assert.False(t, got.IsVerified)
	assert.Equal(t, int64(2000), got.Views)
	assert.Equal(t, int64(0), f.seed.CountTransactions(t, user.ID, string(ledgerdomain.TypeEarning)))

	f.stats.set(clip.VideoURL, 4000, "watch this! "+clip.VerificationCode)
	res = f.run(t)
	assert.Equal(t, 1, res.NewlyVerified)
	assert.True(t, res.TotalEarningsAdded.Equal(decimal.NewFromInt(2)))
	assert.True(t, f.seed.ReloadClip(t, clip.ID).IsVerified)
	assert.Equal(t, 1, f.notifier.count(notify.EventClipVerified))

	// Removing the code later does not revoke verification.
	f.stats.set(clip.VideoURL, 5000, "")
	res = f.run(t)
	assert.Equal(t, 0, res.NewlyVerified)
	assert.True(t, f.seed.ReloadClip(t, clip.ID).IsVerified)
	assert.True(t, res.TotalEarningsAdded.Equal(decimal.NewFromInt(1)))
}

func TestRunCycleViewRegressionPaysNothing(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 1, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Views: 5000, Verified: true})

	f.stats.set(clip.VideoURL, 4000, "")
	res := f.run(t)
	assert.True(t, res.TotalEarningsAdded.IsZero())
	assert.Equal(t, int64(5000), f.seed.ReloadClip(t, clip.ID).Views)
}

func TestRunCycleSkipsUnavailableStats(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 1, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Views: 10, Verified: true})

	res := f.run(t)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.ClipsUpdated)

	got := f.seed.ReloadClip(t, clip.ID)
	require.NotNil(t, got.LastStatsFetch)
	assert.Equal(t, int64(10), got.Views)
}

func TestRunCycleEarliestClipWinsRemainder(t *testing.T) {
	f := newFixture(t, 1)
	first := f.seed.User(t, 0)
	second := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 1, Budget: 3})
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	later := f.seed.Clip(t, seed.ClipSpec{UserID: second.ID, OfferID: offer.ID, Verified: true, CreatedAt: base.Add(time.Hour)})
	earlier := f.seed.Clip(t, seed.ClipSpec{UserID: first.ID, OfferID: offer.ID, Verified: true, CreatedAt: base})

	f.stats.set(earlier.VideoURL, 2000, "")
	f.stats.set(later.VideoURL, 2000, "")
	res := f.run(t)
	assert.Equal(t, 2, res.ClipsUpdated)
	assert.True(t, res.TotalEarningsAdded.Equal(decimal.NewFromInt(3)))

	assert.True(t, f.seed.ReloadUser(t, first.ID).Balance.Equal(decimal.NewFromInt(2)))
	assert.True(t, f.seed.ReloadUser(t, second.ID).Balance.Equal(decimal.NewFromInt(1)))
	o := f.seed.ReloadOffer(t, offer.ID)
	assert.True(t, o.PaidOut.Equal(o.TotalBudget))
	assert.False(t, o.IsActive)
}

func TestRunCycleIgnoresPendingClips(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 1, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Status: clipdomain.StatusPending})

	f.stats.set(clip.VideoURL, 1000, "")
	res := f.run(t)
	assert.Equal(t, 0, res.ClipsUpdated)
	assert.Equal(t, int64(0), f.seed.ReloadClip(t, clip.ID).Views)
}

func TestRunCycleStopsOnCancel(t *testing.T) {
	f := newFixture(t, 10)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 1, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Verified: true})
	f.stats.set(clip.VideoURL, 1000, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.RunCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.seed.ReloadUser(t, user.ID).Balance.IsZero())
}
