package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrBucketNotConfigured = errors.New("token bucket not configured")
	ErrBucketKeyEmpty      = errors.New("token bucket key is empty")
	ErrBucketSpecInvalid   = errors.New("token bucket rate and burst must be positive")
)

// KEYS[1] bucket hash. ARGV: rate per second, burst, ttl ms.
// Returns {allowed, whole tokens left, ms until the next token}.
const takeTokenScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(burst, tokens + (now - last) / 1000 * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, math.floor(tokens), wait}
`

// BucketSpec is a refill rate in tokens per second and a capacity.
type BucketSpec struct {
	Rate  float64
	Burst int
}

func (s BucketSpec) validate() error {
	if s.Rate <= 0 || s.Burst <= 0 {
		return ErrBucketSpecInvalid
	}
	return nil
}

// idleTTL keeps a bucket around for twice the time it needs to refill.
func (s BucketSpec) idleTTL() time.Duration {
	return time.Duration(math.Max(1, math.Ceil(float64(s.Burst)/s.Rate*2))) * time.Second
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket keeps bucket state in Redis so every API instance draws from
// the same budget.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(takeTokenScript)}
}

// Take consumes a token from key when one is available.
func (b *TokenBucket) Take(ctx context.Context, key string, spec BucketSpec) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, ErrBucketNotConfigured
	}
	if key == "" {
		return Decision{}, ErrBucketKeyEmpty
	}
	if err := spec.validate(); err != nil {
		return Decision{}, err
	}

	vals, err := b.script.Run(ctx, b.client, []string{key},
		spec.Rate, spec.Burst, spec.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(vals) != 3 {
		return Decision{}, errors.New("token bucket: unexpected script reply")
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}
