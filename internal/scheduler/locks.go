package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/cliprail/internal/ratelimit"
	"go.uber.org/zap"
)

const cycleLockKey = "cliprail:accrual:cycle"

// cycleGuard keeps accrual cycles from overlapping.
type cycleGuard interface {
	acquire(ctx context.Context) (release func(), ok bool, err error)
}

func newCycleGuard(locker *ratelimit.Locker, ttl time.Duration, log *zap.Logger) cycleGuard {
	if locker == nil {
		return &mutexGuard{}
	}
	return &redisGuard{locker: locker, ttl: ttl, log: log}
}

// redisGuard spans every instance sharing the Redis.
type redisGuard struct {
	locker *ratelimit.Locker
	ttl    time.Duration
	log    *zap.Logger
}

func (g *redisGuard) acquire(ctx context.Context) (func(), bool, error) {
	token, ok, err := g.locker.TryLock(ctx, cycleLockKey, g.ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		// The cycle context may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.locker.Release(releaseCtx, cycleLockKey, token); err != nil {
			g.log.Warn("failed to release cycle lock", zap.Error(err))
		}
	}, true, nil
}

// mutexGuard only covers this process.
type mutexGuard struct {
	mu sync.Mutex
}

func (g *mutexGuard) acquire(context.Context) (func(), bool, error) {
	if !g.mu.TryLock() {
		return nil, false, nil
	}
	return g.mu.Unlock, true, nil
}
