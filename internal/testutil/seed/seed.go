// Package seed inserts users, offers and clips for service tests.
package seed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	cliprepository "github.com/smallbiznis/cliprail/internal/clip/repository"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	offerrepository "github.com/smallbiznis/cliprail/internal/offer/repository"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	userrepository "github.com/smallbiznis/cliprail/internal/user/repository"
	"gorm.io/gorm"
)

type Seeder struct {
	DB     *gorm.DB
	Node   *snowflake.Node
	Now    time.Time
	Users  userdomain.Repository
	Offers offerdomain.Repository
	Clips  clipdomain.Repository
}

func New(db *gorm.DB, node *snowflake.Node, now time.Time) *Seeder {
	return &Seeder{
		DB:     db,
		Node:   node,
		Now:    now,
		Users:  userrepository.Provide(),
		Offers: offerrepository.Provide(),
		Clips:  cliprepository.Provide(),
	}
}

func (s *Seeder) User(t testing.TB, balance int64) *userdomain.User {
	t.Helper()
	id := s.Node.Generate()
	user := &userdomain.User{
		ID:               id,
		ExternalID:       fmt.Sprintf("tg-%d", id),
		Username:         fmt.Sprintf("creator%d", id),
		Balance:          decimal.NewFromInt(balance),
		ReferralCode:     fmt.Sprintf("REF-%d", id),
		VerificationCode: fmt.Sprintf("USR-%d", id),
		CreatedAt:        s.Now,
		UpdatedAt:        s.Now,
	}
	if err := s.Users.Insert(context.Background(), s.DB, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

type OfferSpec struct {
	CPM       int64
	Budget    int64
	PaidOut   int64
	Inactive  bool
	Platforms []string
}

func (s *Seeder) Offer(t testing.TB, spec OfferSpec) *offerdomain.Offer {
	t.Helper()
	platforms := spec.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	offer := &offerdomain.Offer{
		ID:          s.Node.Generate(),
		Name:        "offer",
		CPMRate:     decimal.NewFromInt(spec.CPM),
		TotalBudget: decimal.NewFromInt(spec.Budget),
		PaidOut:     decimal.NewFromInt(spec.PaidOut),
		IsActive:    !spec.Inactive,
		Platforms:   platforms,
		CreatedAt:   s.Now,
		UpdatedAt:   s.Now,
	}
	if err := s.Offers.Insert(context.Background(), s.DB, offer); err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	return offer
}

func (s *Seeder) Join(t testing.TB, offerID, userID snowflake.ID) {
	t.Helper()
	err := s.Offers.InsertMember(context.Background(), s.DB, &offerdomain.Member{
		OfferID:  offerID,
		UserID:   userID,
		JoinedAt: s.Now,
	})
	if err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

type ClipSpec struct {
	UserID    snowflake.ID
	OfferID   snowflake.ID
	URL       string
	Status    clipdomain.Status
	Views     int64
	Verified  bool
	CreatedAt time.Time
}

func (s *Seeder) Clip(t testing.TB, spec ClipSpec) *clipdomain.Clip {
	t.Helper()
	id := s.Node.Generate()
	url := spec.URL
	if url == "" {
		url = fmt.Sprintf("https://www.youtube.com/shorts/%d", id)
	}
	status := spec.Status
	if status == "" {
		status = clipdomain.StatusApproved
	}
	createdAt := spec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.Now
	}
	platform, err := clipdomain.ClassifyPlatform(url)
	if err != nil {
		t.Fatalf("seed clip platform: %v", err)
	}
	clip := &clipdomain.Clip{
		ID:               id,
		UserID:           spec.UserID,
		OfferID:          spec.OfferID,
		VideoURL:         url,
		Platform:         platform,
		Status:           status,
		Views:            spec.Views,
		EarnedAmount:     decimal.Zero,
		IsVerified:       spec.Verified,
		VerificationCode: fmt.Sprintf("CLIP-%d", id),
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if err := s.Clips.Insert(context.Background(), s.DB, clip); err != nil {
		t.Fatalf("seed clip: %v", err)
	}
	return clip
}

func (s *Seeder) ReloadUser(t testing.TB, id snowflake.ID) *userdomain.User {
	t.Helper()
	user, err := s.Users.FindByID(context.Background(), s.DB, id)
	if err != nil || user == nil {
		t.Fatalf("reload user %s: %v", id, err)
	}
	return user
}

func (s *Seeder) ReloadOffer(t testing.TB, id snowflake.ID) *offerdomain.Offer {
	t.Helper()
	offer, err := s.Offers.FindByID(context.Background(), s.DB, id)
	if err != nil || offer == nil {
		t.Fatalf("reload offer %s: %v", id, err)
	}
	return offer
}

func (s *Seeder) ReloadClip(t testing.TB, id snowflake.ID) *clipdomain.Clip {
	t.Helper()
	clip, err := s.Clips.FindByID(context.Background(), s.DB, id)
	if err != nil || clip == nil {
		t.Fatalf("reload clip %s: %v", id, err)
	}
	return clip
}

// CountTransactions counts ledger rows of a given type for a user.
func (s *Seeder) CountTransactions(t testing.TB, userID snowflake.ID, txType string) int64 {
	t.Helper()
	var count int64
	err := s.DB.Raw(`SELECT COUNT(1) FROM transactions WHERE user_id = ? AND type = ?`, userID, txType).Scan(&count).Error
	if err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}
