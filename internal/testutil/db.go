// Package testutil provides an in-memory store shaped like the production
// schema for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

const schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	username TEXT,
	name TEXT,
	balance NUMERIC(20,4) NOT NULL DEFAULT 0,
	is_admin BOOLEAN NOT NULL DEFAULT false,
	referral_code TEXT NOT NULL UNIQUE,
	referred_by_id INTEGER,
	verification_code TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE offers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	title TEXT,
	cpm_rate NUMERIC(20,4) NOT NULL,
	total_budget NUMERIC(20,4) NOT NULL,
	paid_out NUMERIC(20,4) NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT true,
	platforms TEXT NOT NULL DEFAULT '[]',
	requirements TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE offer_members (
	offer_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	joined_at DATETIME NOT NULL,
	PRIMARY KEY (offer_id, user_id)
);
CREATE TABLE clips (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL,
	offer_id INTEGER NOT NULL,
	video_url TEXT NOT NULL,
	platform TEXT NOT NULL,
	status TEXT NOT NULL,
	views INTEGER NOT NULL DEFAULT 0,
	likes INTEGER NOT NULL DEFAULT 0,
	comments INTEGER NOT NULL DEFAULT 0,
	title TEXT,
	thumbnail_url TEXT,
	earned_amount NUMERIC(20,4) NOT NULL DEFAULT 0,
	is_verified BOOLEAN NOT NULL DEFAULT false,
	verification_code TEXT NOT NULL UNIQUE,
	rejection_reason TEXT,
	last_stats_fetch DATETIME,
	approved_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (offer_id, video_url)
);
CREATE TABLE transactions (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL,
	clip_id INTEGER,
	amount NUMERIC(20,4) NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	dedupe_key TEXT UNIQUE,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// NewDB opens a private in-memory database with the application schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:cliprail_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to apply schema: %v", err)
		}
	}
	return db
}

// NewNode returns a snowflake node for generating ids in tests.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
