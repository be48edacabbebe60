package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	"github.com/smallbiznis/cliprail/internal/notify"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       ledgerdomain.Repository
	Users      userdomain.Repository
	Notifier   notify.Notifier     `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	users      userdomain.Repository
	notifier   notify.Notifier
	obsMetrics *obsmetrics.Metrics

	withdrawalMinimum decimal.Decimal
}

func NewService(p Params) ledgerdomain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notify.NoOp()
	}
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("ledger.service"),
		genID:             p.GenID,
		clock:             p.Clock,
		repo:              p.Repo,
		users:             p.Users,
		notifier:          notifier,
		obsMetrics:        p.ObsMetrics,
		withdrawalMinimum: p.Cfg.Withdrawal.Minimum,
	}
}

func (s *Service) RecordEarningTx(ctx context.Context, tx *gorm.DB, entry ledgerdomain.EarningEntry) (ledgerdomain.Transaction, error) {
	if entry.UserID == 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidUser
	}
	if entry.ClipID == 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidClip
	}
	if !entry.Amount.IsPositive() {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	clipID := entry.ClipID
	txn := ledgerdomain.Transaction{
		ID:     s.genID.Generate(),
		UserID: entry.UserID,
		ClipID: &clipID,
		Amount: entry.Amount,
		Type:   ledgerdomain.TypeEarning,
		Status: ledgerdomain.StatusCompleted,
		Metadata: datatypes.JSONMap{
			"source":   string(entry.Source),
			"offer_id": entry.OfferID.String(),
			"views":    entry.Views,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, tx, &txn); err != nil {
		return ledgerdomain.Transaction{}, err
	}
	s.obsMetrics.RecordTransaction(ctx, string(ledgerdomain.TypeEarning))
	return txn, nil
}

func (s *Service) CreditReferral(ctx context.Context, credit ledgerdomain.ReferralCredit) (bool, error) {
	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		applied, err = s.CreditReferralTx(ctx, tx, credit)
		return err
	})
	return applied, err
}

func (s *Service) CreditReferralTx(ctx context.Context, tx *gorm.DB, credit ledgerdomain.ReferralCredit) (bool, error) {
	if credit.ReferrerID == 0 || credit.RefereeID == 0 || credit.ReferrerID == credit.RefereeID {
		return false, ledgerdomain.ErrInvalidUser
	}
	if !credit.Amount.IsPositive() {
		return false, ledgerdomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	dedupe := "referral:" + credit.RefereeID.String()
	txn := ledgerdomain.Transaction{
		ID:     s.genID.Generate(),
		UserID: credit.ReferrerID,
		Amount: credit.Amount,
		Type:   ledgerdomain.TypeReferral,
		Status: ledgerdomain.StatusCompleted,
		Metadata: datatypes.JSONMap{
			"referee_id": credit.RefereeID.String(),
		},
		DedupeKey: &dedupe,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inserted, err := s.repo.InsertDeduped(ctx, tx, &txn)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}
	if err := s.users.AddBalance(ctx, tx, credit.ReferrerID, credit.Amount, now); err != nil {
		return false, err
	}

	s.obsMetrics.RecordTransaction(ctx, string(ledgerdomain.TypeReferral))
	s.log.Info("referral credited",
		zap.String("referrer_id", credit.ReferrerID.String()),
		zap.String("referee_id", credit.RefereeID.String()),
		zap.String("amount", credit.Amount.String()),
	)
	return true, nil
}

// RequestWithdrawal debits the balance immediately and leaves the payout
// pending until an operator resolves it.
func (s *Service) RequestWithdrawal(ctx context.Context, req ledgerdomain.WithdrawalRequest) (ledgerdomain.Transaction, error) {
	if req.UserID == 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidUser
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(s.withdrawalMinimum) {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidAmount
	}
	amount := req.Amount.RoundFloor(4)

	var txn ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ledgerdomain.ErrInvalidUser
		}
		if amount.GreaterThan(user.Balance) {
			return ledgerdomain.ErrInsufficientBalance
		}

		now := s.clock.Now()
		if err := s.users.AddBalance(ctx, tx, user.ID, amount.Neg(), now); err != nil {
			return err
		}
		txn = ledgerdomain.Transaction{
			ID:     s.genID.Generate(),
			UserID: user.ID,
			Amount: amount.Neg(),
			Type:   ledgerdomain.TypeWithdrawal,
			Status: ledgerdomain.StatusPending,
			Metadata: datatypes.JSONMap{
				"destination": strings.TrimSpace(req.Destination),
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.Insert(ctx, tx, &txn)
	})
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}

	s.obsMetrics.RecordTransaction(ctx, string(ledgerdomain.TypeWithdrawal))
	s.log.Info("withdrawal requested",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("user_id", txn.UserID.String()),
		zap.String("amount", amount.String()),
	)
	s.notifier.Notify(ctx, txn.UserID, notify.EventWithdrawalRequested, map[string]any{
		"transaction_id": txn.ID.String(),
		"amount":         amount.String(),
	})
	return txn, nil
}

// ResolveWithdrawal settles a pending withdrawal. Rejection restores the
// debited amount in the same transaction as the status change.
func (s *Service) ResolveWithdrawal(ctx context.Context, id snowflake.ID, approve bool) (ledgerdomain.Transaction, error) {
	if id == 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidID
	}

	var resolved ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if txn == nil || txn.Type != ledgerdomain.TypeWithdrawal {
			return ledgerdomain.ErrNotFound
		}
		if txn.Status != ledgerdomain.StatusPending {
			return ledgerdomain.ErrInvalidState
		}

		now := s.clock.Now()
		status := ledgerdomain.StatusCompleted
		if !approve {
			status = ledgerdomain.StatusRejected
			if err := s.users.AddBalance(ctx, tx, txn.UserID, txn.Amount.Abs(), now); err != nil {
				return err
			}
		}
		if err := s.repo.UpdateStatus(ctx, tx, txn.ID, status, now); err != nil {
			return err
		}
		txn.Status = status
		txn.UpdatedAt = now
		resolved = *txn
		return nil
	})
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}

	s.log.Info("withdrawal resolved",
		zap.String("transaction_id", resolved.ID.String()),
		zap.String("status", string(resolved.Status)),
	)
	return resolved, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (ledgerdomain.Transaction, error) {
	if id == 0 {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrInvalidID
	}
	txn, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return ledgerdomain.Transaction{}, err
	}
	if txn == nil {
		return ledgerdomain.Transaction{}, ledgerdomain.ErrNotFound
	}
	return *txn, nil
}

func (s *Service) ListByUser(ctx context.Context, req ledgerdomain.ListTransactionRequest) (ledgerdomain.ListTransactionResponse, error) {
	if req.UserID == 0 {
		return ledgerdomain.ListTransactionResponse{}, ledgerdomain.ErrInvalidUser
	}
	switch req.Type {
	case "", ledgerdomain.TypeEarning, ledgerdomain.TypeReferral, ledgerdomain.TypeWithdrawal:
	default:
		return ledgerdomain.ListTransactionResponse{}, ledgerdomain.ErrInvalidType
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}
	pageSize := int32(page.Size())

	items, err := s.repo.ListByUser(ctx, s.db, req.UserID, ledgerdomain.ListTransactionFilter{Type: req.Type}, page)
	if err != nil {
		return ledgerdomain.ListTransactionResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(txn *ledgerdomain.Transaction) string {
		return pagination.CursorFor(txn.ID.String(), txn.CreatedAt)
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	txns := make([]ledgerdomain.Transaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		txns = append(txns, *item)
	}

	resp := ledgerdomain.ListTransactionResponse{Transactions: txns}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Reconcile(ctx context.Context, userID snowflake.ID) (ledgerdomain.Reconciliation, error) {
	if userID == 0 {
		return ledgerdomain.Reconciliation{}, ledgerdomain.ErrInvalidUser
	}
	user, err := s.users.FindByID(ctx, s.db, userID)
	if err != nil {
		return ledgerdomain.Reconciliation{}, err
	}
	if user == nil {
		return ledgerdomain.Reconciliation{}, ledgerdomain.ErrNotFound
	}
	totals, err := s.repo.SumByUser(ctx, s.db, userID)
	if err != nil {
		return ledgerdomain.Reconciliation{}, err
	}

	expected := totals.Earnings.Add(totals.Referrals).Sub(totals.Withdrawals)
	rec := ledgerdomain.Reconciliation{
		UserID:      userID,
		Balance:     user.Balance,
		Expected:    expected,
		Earnings:    totals.Earnings,
		Referrals:   totals.Referrals,
		Withdrawals: totals.Withdrawals,
		Consistent:  user.Balance.Equal(expected),
	}
	if !rec.Consistent {
		s.log.Warn("balance drift detected",
			zap.String("user_id", userID.String()),
			zap.String("balance", user.Balance.String()),
			zap.String("expected", expected.String()),
		)
	}
	return rec, nil
}
