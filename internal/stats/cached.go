package stats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"go.uber.org/zap"
)

const keyStatsCache = "cliprail:stats:"

type cached struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// Cached keeps answers in Redis for ttl so the submission backfill and a
// running cycle share one upstream call. Without a client it is a no-op.
func Cached(next Provider, client *redis.Client, ttl time.Duration, log *zap.Logger) Provider {
	if client == nil || ttl <= 0 {
		return next
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &cached{next: next, client: client, ttl: ttl, log: log}
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) FetchVideoStats(ctx context.Context, url string) (*Stats, error) {
	key := keyStatsCache + clipdomain.NormalizeURL(url)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s Stats
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			return &s, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
	}

	s, err := Fetch(ctx, c.next, url)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(s); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return s, nil
}
