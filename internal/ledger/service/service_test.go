package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	"github.com/smallbiznis/cliprail/internal/ledger/repository"
	"github.com/smallbiznis/cliprail/internal/notify"
	"github.com/smallbiznis/cliprail/internal/testutil"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	userrepository "github.com/smallbiznis/cliprail/internal/user/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, _ snowflake.ID, event notify.Event, _ map[string]any) {
	r.events = append(r.events, event)
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	users    userdomain.Repository
	node     *snowflake.Node
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	users := userrepository.Provide()
	notifier := &recordingNotifier{}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)),
		Cfg:      config.Config{Withdrawal: config.WithdrawalConfig{Minimum: decimal.NewFromInt(10)}},
		Repo:     repository.Provide(),
		Users:    users,
		Notifier: notifier,
	}).(*Service)
	return &fixture{svc: svc, db: db, users: users, node: node, notifier: notifier}
}

func (f *fixture) createUser(t *testing.T, balance int64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	err := f.users.Insert(context.Background(), f.db, &userdomain.User{
		ID:               id,
		ExternalID:       fmt.Sprintf("tg-%d", id),
		Username:         "creator",
		Balance:          decimal.NewFromInt(balance),
		ReferralCode:     fmt.Sprintf("REF-%d", id),
		VerificationCode: fmt.Sprintf("USR-%d", id),
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) balance(t *testing.T, id snowflake.ID) decimal.Decimal {
	t.Helper()
	user, err := f.users.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.Balance
}

// earn mirrors how payouts post: balance update and earning row in one tx.
func (f *fixture) earn(t *testing.T, userID snowflake.ID, amount int64) {
	t.Helper()
	ctx := context.Background()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.users.AddBalance(ctx, tx, userID, decimal.NewFromInt(amount), time.Now().UTC()); err != nil {
			return err
		}
		_, err := f.svc.RecordEarningTx(ctx, tx, ledgerdomain.EarningEntry{
			UserID: userID,
			ClipID: f.node.Generate(),
			Amount: decimal.NewFromInt(amount),
			Source: ledgerdomain.SourceAccrual,
		})
		return err
	})
	require.NoError(t, err)
}

func TestRequestWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createUser(t, 100)

	txn, err := f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{
		UserID:      userID,
		Amount:      decimal.NewFromInt(40),
		Destination: "wallet-1",
	})
	require.NoError(t, err)
	require.Equal(t, ledgerdomain.StatusPending, txn.Status)
	require.Equal(t, ledgerdomain.TypeWithdrawal, txn.Type)
	require.True(t, txn.Amount.Equal(decimal.NewFromInt(-40)), "amount %s", txn.Amount)
	require.True(t, f.balance(t, userID).Equal(decimal.NewFromInt(60)))
	require.Equal(t, []notify.Event{notify.EventWithdrawalRequested}, f.notifier.events)

	_, err = f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{UserID: userID, Amount: decimal.NewFromInt(61)})
	require.True(t, errors.Is(err, ledgerdomain.ErrInsufficientBalance), "got %v", err)

	_, err = f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{UserID: userID, Amount: decimal.NewFromInt(5)})
	require.True(t, errors.Is(err, ledgerdomain.ErrInvalidAmount), "got %v", err)

	_, err = f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{UserID: userID, Amount: decimal.NewFromInt(-20)})
	require.True(t, errors.Is(err, ledgerdomain.ErrInvalidAmount), "got %v", err)

	require.True(t, f.balance(t, userID).Equal(decimal.NewFromInt(60)))
}

func TestResolveWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createUser(t, 100)

	rejected, err := f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{UserID: userID, Amount: decimal.NewFromInt(30)})
	require.NoError(t, err)
	completed, err := f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{UserID: userID, Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	require.True(t, f.balance(t, userID).Equal(decimal.NewFromInt(50)))

	got, err := f.svc.ResolveWithdrawal(ctx, rejected.ID, false)
	require.NoError(t, err)
	require.Equal(t, ledgerdomain.StatusRejected, got.Status)
	require.True(t, f.balance(t, userID).Equal(decimal.NewFromInt(80)))

	got, err = f.svc.ResolveWithdrawal(ctx, completed.ID, true)
	require.NoError(t, err)
	require.Equal(t, ledgerdomain.StatusCompleted, got.Status)
	require.True(t, f.balance(t, userID).Equal(decimal.NewFromInt(80)))

	_, err = f.svc.ResolveWithdrawal(ctx, rejected.ID, true)
	require.True(t, errors.Is(err, ledgerdomain.ErrInvalidState), "got %v", err)

	_, err = f.svc.ResolveWithdrawal(ctx, f.node.Generate(), true)
	require.True(t, errors.Is(err, ledgerdomain.ErrNotFound), "got %v", err)
}

func TestCreditReferralIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.createUser(t, 0)
	referee := f.createUser(t, 0)

	credit := ledgerdomain.ReferralCredit{ReferrerID: referrer, RefereeID: referee, Amount: decimal.NewFromInt(5)}
	applied, err := f.svc.CreditReferral(ctx, credit)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = f.svc.CreditReferral(ctx, credit)
	require.NoError(t, err)
	require.False(t, applied)

	require.True(t, f.balance(t, referrer).Equal(decimal.NewFromInt(5)))

	_, err = f.svc.CreditReferral(ctx, ledgerdomain.ReferralCredit{ReferrerID: referrer, RefereeID: referrer, Amount: decimal.NewFromInt(5)})
	require.True(t, errors.Is(err, ledgerdomain.ErrInvalidUser), "got %v", err)
}

func TestReconcileTracksEveryMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createUser(t, 0)
	referee := f.createUser(t, 0)

	f.earn(t, userID, 500)
	f.earn(t, userID, 250)
	_, err := f.svc.CreditReferral(ctx, ledgerdomain.ReferralCredit{ReferrerID: userID, RefereeID: referee, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	pending, err := f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{UserID: userID, Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	rejected, err := f.svc.RequestWithdrawal(ctx, ledgerdomain.WithdrawalRequest{UserID: userID, Amount: decimal.NewFromInt(60)})
	require.NoError(t, err)
	_, err = f.svc.ResolveWithdrawal(ctx, rejected.ID, false)
	require.NoError(t, err)

	rec, err := f.svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	require.True(t, rec.Consistent, "balance %s expected %s", rec.Balance, rec.Expected)
	require.True(t, rec.Earnings.Equal(decimal.NewFromInt(750)))
	require.True(t, rec.Referrals.Equal(decimal.NewFromInt(10)))
	require.True(t, rec.Withdrawals.Equal(decimal.NewFromInt(100)))
	require.True(t, rec.Balance.Equal(decimal.NewFromInt(660)))

	_, err = f.svc.ResolveWithdrawal(ctx, pending.ID, true)
	require.NoError(t, err)
	rec, err = f.svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	require.True(t, rec.Consistent)

	require.NoError(t, f.users.AddBalance(ctx, f.db, userID, decimal.NewFromInt(1), time.Now().UTC()))
	rec, err = f.svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	require.False(t, rec.Consistent)
}

func TestListByUserPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createUser(t, 0)
	for i := 0; i < 5; i++ {
		f.earn(t, userID, 1)
	}

	first, err := f.svc.ListByUser(ctx, ledgerdomain.ListTransactionRequest{UserID: userID, PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 3)
	require.True(t, first.HasMore)

	second, err := f.svc.ListByUser(ctx, ledgerdomain.ListTransactionRequest{UserID: userID, PageSize: 3, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 2)
	require.False(t, second.HasMore)

	seen := map[snowflake.ID]struct{}{}
	for _, txn := range append(first.Transactions, second.Transactions...) {
		seen[txn.ID] = struct{}{}
	}
	require.Len(t, seen, 5)

	_, err = f.svc.ListByUser(ctx, ledgerdomain.ListTransactionRequest{UserID: userID, Type: "bogus"})
	require.True(t, errors.Is(err, ledgerdomain.ErrInvalidType))
}
