package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm", err: gorm.ErrDuplicatedKey, want: true},
		{name: "pg code", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: clips.verification_code"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	wrapped := fmt.Errorf("post payout: %w", &pgconn.PgError{Code: "40001"})
	if !IsRetryable(wrapped) {
		t.Fatalf("expected wrapped serialization failure to be retryable")
	}
	if !IsRetryable(&pgconn.PgError{Code: "40P01"}) {
		t.Fatalf("expected deadlock to be retryable")
	}
	if !IsRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatalf("expected sqlite busy to be retryable")
	}
	if IsRetryable(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation must not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil must not be retryable")
	}
}
