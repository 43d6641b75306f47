package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	claimdomain "github.com/smallbiznis/homeaccess/internal/claim/domain"
	"github.com/smallbiznis/homeaccess/internal/config"
	"github.com/smallbiznis/homeaccess/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyJoinAttempt = "claim:join:%s:%s"

// JoinAttemptLimiter throttles join-code guesses per identity and unit.
type JoinAttemptLimiter struct {
	bucket  *TokenBucket
	policy  *config.ClaimPolicyHolder
	metrics *metrics.Metrics
	log     *zap.Logger
}

type JoinAttemptParams struct {
	fx.In

	Client  *redis.Client `optional:"true"`
	Policy  *config.ClaimPolicyHolder
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

// NewJoinAttemptLimiter returns a nil AttemptLimiter when Redis is not configured.
func NewJoinAttemptLimiter(p JoinAttemptParams) claimdomain.AttemptLimiter {
	if p.Client == nil {
		return nil
	}
	return &JoinAttemptLimiter{
		bucket:  NewTokenBucket(p.Client),
		policy:  p.Policy,
		metrics: p.Metrics,
		log:     p.Log.Named("ratelimit.join"),
	}
}

func (l *JoinAttemptLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowJoinAttempt fails open: a Redis outage must not lock residents out.
func (l *JoinAttemptLimiter) AllowJoinAttempt(ctx context.Context, userID, unitID snowflake.ID) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}

	policy := l.policy.Get()
	key := fmt.Sprintf(keyJoinAttempt, userID.String(), unitID.String())
	result, err := l.bucket.Allow(ctx, key, policy.AttemptRate, policy.AttemptBurst)
	if err != nil {
		l.log.Warn("join attempt limiter unavailable",
			zap.String("unit_id", unitID.String()),
			zap.Error(err),
		)
		return true, 0
	}
	if !result.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, "join_code", string(claimdomain.ReasonTooManyAttempts))
		return false, result.RetryAfter
	}
	l.metrics.RecordRateLimitAllowed(ctx, "join_code")
	return true, 0
}
