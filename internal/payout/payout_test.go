package payout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/cliprail/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/cliprail/internal/ledger/service"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	"github.com/smallbiznis/cliprail/internal/testutil"
	"github.com/smallbiznis/cliprail/internal/testutil/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	seed   *seed.Seeder
	poster *Poster
}

func newFixture(t *testing.T) *fixture {
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
		Cfg:   config.Config{},
		Repo:  ledgerrepository.Provide(),
		Users: s.Users,
	})
	poster := New(Params{
		Log:    zap.NewNop(),
		Clock:  clk,
		Offers: s.Offers,
		Users:  s.Users,
		Clips:  s.Clips,
		Ledger: ledger,
	})
	return &fixture{db: db, seed: s, poster: poster}
}

func (f *fixture) post(t *testing.T, grant Grant) Outcome {
	t.Helper()
	var out Outcome
	err := Transact(context.Background(), f.db, func(tx *gorm.DB) error {
		var err error
		out, err = f.poster.Post(context.Background(), tx, grant)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestPostBudgetScenarios(t *testing.T) {
	f := newFixture(t)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 500, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Verified: true})

	grant := Grant{ClipID: clip.ID, UserID: user.ID, OfferID: offer.ID, Source: ledgerdomain.SourceAccrual}

	// 0 -> 1000 views pays 500 and leaves the offer running.
	grant.PreviousViews, grant.NewViews = 0, 1000
	out := f.post(t, grant)
	assert.Equal(t, OutcomeApplied, out.Kind)
	assert.True(t, out.Payable.Equal(decimal.NewFromInt(500)))
	o := f.seed.ReloadOffer(t, offer.ID)
	assert.True(t, o.PaidOut.Equal(decimal.NewFromInt(500)))
	assert.True(t, o.IsActive)

	// 1000 -> 3000 would pay 1000 but only 500 is left.
	grant.PreviousViews, grant.NewViews = 1000, 3000
	out = f.post(t, grant)
	assert.Equal(t, OutcomeBudgetExhausted, out.Kind)
	assert.True(t, out.Payable.Equal(decimal.NewFromInt(500)))
	o = f.seed.ReloadOffer(t, offer.ID)
	assert.True(t, o.PaidOut.Equal(o.TotalBudget))
	assert.False(t, o.IsActive)
	assert.True(t, f.seed.ReloadClip(t, clip.ID).EarnedAmount.Equal(decimal.NewFromInt(1000)))

	// The deactivated offer pays nothing further.
	grant.PreviousViews, grant.NewViews = 3000, 5000
	out = f.post(t, grant)
	assert.Equal(t, OutcomeInactive, out.Kind)
	assert.True(t, out.Payable.IsZero())
	assert.True(t, out.Remaining.IsZero())

	assert.True(t, f.seed.ReloadUser(t, user.ID).Balance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(2), f.seed.CountTransactions(t, user.ID, string(ledgerdomain.TypeEarning)))
}

func TestPostNoGrowth(t *testing.T) {
	f := newFixture(t)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 500, Budget: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Views: 1000, Verified: true})

	out := f.post(t, Grant{ClipID: clip.ID, UserID: user.ID, OfferID: offer.ID, PreviousViews: 1000, NewViews: 1000})
	assert.Equal(t, OutcomeNothing, out.Kind)
	assert.Equal(t, int64(0), f.seed.CountTransactions(t, user.ID, string(ledgerdomain.TypeEarning)))
	assert.True(t, f.seed.ReloadOffer(t, offer.ID).IsActive)
}

func TestPostDeactivatesSpentOfferWithoutGrowth(t *testing.T) {
	f := newFixture(t)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 500, Budget: 1000, PaidOut: 1000})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Views: 10, Verified: true})

	out := f.post(t, Grant{ClipID: clip.ID, UserID: user.ID, OfferID: offer.ID, PreviousViews: 10, NewViews: 10})
	assert.Equal(t, OutcomeBudgetExhausted, out.Kind)
	assert.True(t, out.Payable.IsZero())
	assert.False(t, f.seed.ReloadOffer(t, offer.ID).IsActive)
	assert.True(t, f.seed.ReloadUser(t, user.ID).Balance.IsZero())
}

func TestPostReportsRemainingOnPausedOffer(t *testing.T) {
	f := newFixture(t)
	user := f.seed.User(t, 0)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 500, Budget: 1000, PaidOut: 300, Inactive: true})
	clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Verified: true})

	out := f.post(t, Grant{ClipID: clip.ID, UserID: user.ID, OfferID: offer.ID, NewViews: 1000})
	assert.Equal(t, OutcomeInactive, out.Kind)
	assert.True(t, out.Payable.IsZero())
	assert.True(t, out.Remaining.Equal(decimal.NewFromInt(700)))
	assert.True(t, f.seed.ReloadUser(t, user.ID).Balance.IsZero())
}

func TestConcurrentPostsShareOneBudget(t *testing.T) {
	f := newFixture(t)
	offer := f.seed.Offer(t, seed.OfferSpec{CPM: 500, Budget: 1000})

	grants := make([]Grant, 6)
	for i := range grants {
		user := f.seed.User(t, 0)
		clip := f.seed.Clip(t, seed.ClipSpec{UserID: user.ID, OfferID: offer.ID, Verified: true})
		grants[i] = Grant{ClipID: clip.ID, UserID: user.ID, OfferID: offer.ID, NewViews: 900, Source: ledgerdomain.SourceAccrual}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(grants))
	for i, grant := range grants {
		wg.Add(1)
		go func(i int, grant Grant) {
			defer wg.Done()
			errs[i] = Transact(context.Background(), f.db, func(tx *gorm.DB) error {
				_, err := f.poster.Post(context.Background(), tx, grant)
				return err
			})
		}(i, grant)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	o := f.seed.ReloadOffer(t, offer.ID)
	assert.True(t, o.PaidOut.Equal(o.TotalBudget), "paid_out %s", o.PaidOut)
	assert.False(t, o.IsActive)

	credited := decimal.Zero
	for _, grant := range grants {
		credited = credited.Add(f.seed.ReloadUser(t, grant.UserID).Balance)
		assert.True(t, f.seed.ReloadClip(t, grant.ClipID).EarnedAmount.Equal(f.seed.ReloadUser(t, grant.UserID).Balance))
	}
	assert.True(t, credited.Equal(o.PaidOut), "balances %s, paid_out %s", credited, o.PaidOut)
}

func TestPostUnknownOffer(t *testing.T) {
	f := newFixture(t)
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.poster.Post(context.Background(), tx, Grant{ClipID: 1, UserID: 1, OfferID: 999, NewViews: 10})
		return err
	})
	require.ErrorIs(t, err, offerdomain.ErrNotFound)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, DispositionDone, Classify(nil))
	assert.Equal(t, DispositionRetry, Classify(&pgconn.PgError{Code: "40001"}))
	assert.Equal(t, DispositionRetry, Classify(&pgconn.PgError{Code: "40P01"}))
	assert.Equal(t, DispositionRetry, Classify(&pgconn.PgError{Code: "55P03"}))
	assert.Equal(t, DispositionAbandon, Classify(&pgconn.PgError{Code: "23505"}))
	assert.Equal(t, DispositionAbandon, Classify(errors.New("boom")))
}

func TestTransactRetriesRetryableErrors(t *testing.T) {
	db := testutil.NewDB(t)

	attempts := 0
	err := Transact(context.Background(), db, func(tx *gorm.DB) error {
		attempts++
		if attempts < 2 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	attempts = 0
	err = Transact(context.Background(), db, func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.Equal(t, MaxAttempts, attempts)

	attempts = 0
	err = Transact(context.Background(), db, func(tx *gorm.DB) error {
		attempts++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
