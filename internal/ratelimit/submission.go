package ratelimit

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cliprail/internal/config"
)

const submissionKeyPrefix = "cliprail:submit:user:"

// SubmissionLimiter caps how fast a single creator can submit clips.
type SubmissionLimiter struct {
	bucket *TokenBucket
	spec   BucketSpec
}

// NewSubmissionLimiter returns nil when limiting is disabled. A nil limiter
// allows everything.
func NewSubmissionLimiter(cfg config.Config, client *redis.Client) (*SubmissionLimiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("submission rate limit requires redis")
	}
	spec := BucketSpec{Rate: cfg.RateLimit.SubmissionRate, Burst: cfg.RateLimit.SubmissionBurst}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &SubmissionLimiter{bucket: NewTokenBucket(client), spec: spec}, nil
}

func (l *SubmissionLimiter) Enabled() bool {
	return l != nil
}

func (l *SubmissionLimiter) AllowUser(ctx context.Context, userID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, submissionKeyPrefix+strings.TrimSpace(userID), l.spec)
}
