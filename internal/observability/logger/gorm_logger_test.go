package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT * FROM offers WHERE id = ? FOR UPDATE", want: "SELECT"},
		{sql: "  update clips set views = ?", want: "UPDATE"},
		{sql: "WITH x AS (SELECT 1) SELECT * FROM x", want: "SELECT"},
		{sql: "", want: "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}

func TestGormLoggerTraceLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        10 * time.Millisecond,
		IgnoreRecordNotFound: true,
	})
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT * FROM offers WHERE id = ? FOR UPDATE", 1 }

	l.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)
	if logs.Len() != 0 {
		t.Fatalf("expected record-not-found to be ignored, got %d entries", logs.Len())
	}

	l.Trace(ctx, time.Now(), query, errors.New("boom"))
	l.Trace(ctx, time.Now().Add(-time.Second), query, nil)
	l.Trace(ctx, time.Now(), query, nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected error and slow entries, got %d", len(entries))
	}
	if entries[0].Level != zap.ErrorLevel || entries[1].Level != zap.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if !entries[0].ContextMap()["row_lock"].(bool) {
		t.Fatalf("expected row_lock field to be true")
	}
}
