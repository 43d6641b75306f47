package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket is a hash {level, at}: level is the token count scaled by 1000 and at is the
// server time in ms of the last update. The script answers {allowed, level, wait_ms}
// where wait_ms is how long until the next token is available.
const tokenBucketScript = `
local rate_per_ms = tonumber(ARGV[1]) / 1000
local capacity = tonumber(ARGV[2]) * 1000
local ttl_ms = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "level", "at")
local level = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now

local elapsed = math.max(0, now - at)
level = math.min(capacity, level + elapsed * rate_per_ms * 1000)

local allowed = 0
local wait_ms = 0
if level >= 1000 then
  allowed = 1
  level = level - 1000
else
  wait_ms = math.ceil((1000 - level) / (rate_per_ms * 1000))
end

redis.call("HSET", KEYS[1], "level", level, "at", now)
redis.call("PEXPIRE", KEYS[1], ttl_ms)

return {allowed, math.floor(level), wait_ms}
`

var (
	ErrBucketNotConfigured = errors.New("token bucket not configured")
	errBucketReply         = errors.New("unexpected token bucket reply")
)

// TokenBucket is a Redis-backed bucket shared by every replica.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket at key. The bucket holds up to burst tokens and
// refills at rate tokens per second.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return nil, ErrBucketNotConfigured
	}
	switch {
	case key == "":
		return nil, errors.New("token bucket key is empty")
	case rate <= 0:
		return nil, errors.New("token bucket rate must be positive")
	case burst <= 0:
		return nil, errors.New("token bucket burst must be positive")
	}

	reply, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, bucketTTL(rate, burst).Milliseconds()).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(reply) != 3 {
		return nil, errBucketReply
	}

	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Limit:      burst,
		Remaining:  int(reply[1] / 1000),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket around for twice the time it takes to refill.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(2*float64(burst)/rate))
	return time.Duration(seconds) * time.Second
}
