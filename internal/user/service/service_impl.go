package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	"github.com/smallbiznis/cliprail/internal/user/domain"
	"github.com/smallbiznis/cliprail/internal/verification"
	"github.com/smallbiznis/cliprail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCodeAttempts = 5

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cfg    config.Config
	Repo   domain.Repository
	Ledger ledgerdomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	ledger        ledgerdomain.Service
	referralBonus decimal.Decimal
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("user.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		ledger:        p.Ledger,
		referralBonus: p.Cfg.Referral.Bonus,
	}
}

// Register creates a user on first contact and returns the stored user on
// every later call. The referrer is resolved once, at creation.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error) {
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return domain.RegisterResponse{}, domain.ErrInvalidExternalID
	}

	existing, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	if existing != nil {
		return domain.RegisterResponse{User: *existing}, nil
	}

	var (
		user     domain.User
		referred bool
	)
	for attempt := 1; ; attempt++ {
		user, referred, err = s.create(ctx, externalID, req)
		if err == nil {
			break
		}
		if !db.IsDuplicateKeyErr(err) {
			return domain.RegisterResponse{}, err
		}
		// A concurrent registration for the same identity wins.
		if winner, findErr := s.repo.FindByExternalID(ctx, s.db, externalID); findErr == nil && winner != nil {
			return domain.RegisterResponse{User: *winner}, nil
		}
		if attempt >= maxCodeAttempts {
			return domain.RegisterResponse{}, err
		}
	}

	fields := []zap.Field{zap.String("user_id", user.ID.String())}
	if referred {
		fields = append(fields, zap.String("referred_by_id", user.ReferredByID.String()))
	}
	s.log.Info("user registered", fields...)
	return domain.RegisterResponse{User: user, Created: true}, nil
}

func (s *Service) create(ctx context.Context, externalID string, req domain.RegisterRequest) (domain.User, bool, error) {
	referralCode, err := verification.NewReferralCode()
	if err != nil {
		return domain.User{}, false, err
	}
	accountCode, err := verification.NewAccountCode()
	if err != nil {
		return domain.User{}, false, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:               s.genID.Generate(),
		ExternalID:       externalID,
		Username:         strings.TrimSpace(req.Username),
		Name:             strings.TrimSpace(req.Name),
		Balance:          decimal.Zero,
		ReferralCode:     referralCode,
		VerificationCode: accountCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	referred := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referrer, err := s.resolveReferrer(ctx, tx, req.ReferralCode)
		if err != nil {
			return err
		}
		if referrer != nil {
			user.ReferredByID = &referrer.ID
			referred = true
		}
		if err := s.repo.Insert(ctx, tx, &user); err != nil {
			return err
		}
		if referrer == nil || !s.referralBonus.IsPositive() {
			return nil
		}
		_, err = s.ledger.CreditReferralTx(ctx, tx, ledgerdomain.ReferralCredit{
			ReferrerID: referrer.ID,
			RefereeID:  user.ID,
			Amount:     s.referralBonus,
		})
		return err
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return user, referred, nil
}

// resolveReferrer ignores unknown codes; a bad code must not block sign-up.
func (s *Service) resolveReferrer(ctx context.Context, tx *gorm.DB, code string) (*domain.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	referrer, err := s.repo.FindByReferralCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		s.log.Debug("unknown referral code ignored", zap.String("referral_code", code))
	}
	return referrer, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.User, error) {
	if id == 0 {
		return domain.User{}, domain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) GetByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.User{}, domain.ErrInvalidExternalID
	}
	user, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) SetAdmin(ctx context.Context, id snowflake.ID, admin bool) (domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsAdmin == admin {
		return user, nil
	}
	now := s.clock.Now()
	if err := s.repo.SetAdmin(ctx, s.db, id, admin, now); err != nil {
		return domain.User{}, err
	}
	user.IsAdmin = admin
	user.UpdatedAt = now
	s.log.Info("user admin flag changed", zap.String("user_id", id.String()), zap.Bool("is_admin", admin))
	return user, nil
}
