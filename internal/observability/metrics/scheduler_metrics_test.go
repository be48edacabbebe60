package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  fmt.Errorf("post: %w", &pgconn.PgError{Code: "40001"}),
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "deadlock",
			err:  &pgconn.PgError{Code: "40P01"},
			want: SchedulerJobReasonDeadlock,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	if got := ClassifySchedulerErrorType(context.Canceled); got != SchedulerErrorTypeDeadlineExceeded {
		t.Fatalf("expected deadline type, got %q", got)
	}
	if got := ClassifySchedulerErrorType(gorm.ErrRecordNotFound); got != SchedulerErrorTypeBusinessRule {
		t.Fatalf("record not found is a business outcome, got %q", got)
	}
	if got := ClassifySchedulerErrorType(&pgconn.PgError{Code: "40001"}); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db type, got %q", got)
	}
	if !IsSchedulerErrorRetryable(&pgconn.PgError{Code: "40P01"}) {
		t.Fatalf("expected deadlock to be retryable")
	}
}

func TestJobSkippedAndLockWait(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{
		ServiceName: "cliprail",
		Environment: "test",
	})

	m.IncJobSkipped("accrual_cycle", SchedulerSkipReasonLockHeld)
	m.IncJobSkipped("accrual_cycle", SchedulerSkipReasonLockHeld)
	m.ObserveDBLockWait(LockResourceOffer, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.jobSkipped.WithLabelValues("accrual_cycle", SchedulerSkipReasonLockHeld)); got != 2 {
		t.Fatalf("expected skipped count 2, got %v", got)
	}
	if got := testutil.CollectAndCount(m.dbLockWait); got != 1 {
		t.Fatalf("expected one lock wait series, got %d", got)
	}
}
