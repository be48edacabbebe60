package payout

import (
	"context"
	"time"

	"github.com/smallbiznis/cliprail/internal/observability/metrics"
	"github.com/smallbiznis/cliprail/pkg/db"
	"gorm.io/gorm"
)

// MaxAttempts bounds how often a transaction aborted by the store is replayed.
const MaxAttempts = 3

type Disposition int

const (
	DispositionDone Disposition = iota
	DispositionRetry
	DispositionAbandon
)

// Classify decides what a caller does with the error of a posting transaction.
func Classify(err error) Disposition {
	switch {
	case err == nil:
		return DispositionDone
	case db.IsRetryable(err):
		return DispositionRetry
	default:
		return DispositionAbandon
	}
}

// Transact runs fn in a transaction, replaying it on serialization failures,
// deadlocks and lock timeouts.
func Transact(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err = conn.WithContext(ctx).Transaction(fn)
		if Classify(err) != DispositionRetry || attempt == MaxAttempts {
			return err
		}
		metrics.Accrual().IncRetry()

		backoff := time.Duration(attempt*25) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
