package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrThrottled is returned when an account is over its send budget
var ErrThrottled = errors.New("send rate limit exceeded")

// Manager throttles outbound message sends per Instagram account with a
// sliding window. Instagram enforces messaging quotas per account; staying
// under them locally avoids hard provider blocks.
type Manager struct {
	limiter *redis.RateLimiter
	logger  ectologger.Logger
	limit   int64
	window  time.Duration
}

// NewManager creates a new send throttle manager
func NewManager(redisClient *redis.Client, limit int, window time.Duration, logger ectologger.Logger) *Manager {
	return &Manager{
		limiter: redis.NewRateLimiter(redisClient, redis.Key("sends")+":"),
		logger:  logger,
		limit:   int64(limit),
		window:  window,
	}
}

// AllowSend checks whether the account may send another message. Redis
// failures allow the send (fail open); an exhausted budget returns
// ErrThrottled with the retry delay attached.
func (m *Manager) AllowSend(ctx context.Context, accountID string) error {
	ctx, span := tracing.StartSpan(ctx, "RateLimitManager.AllowSend")
	defer span.End()

	result, err := m.limiter.Allow(ctx, accountID, m.limit, m.window)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Error("send rate limit check failed, allowing")
		return nil
	}

	if !result.Allowed {
		metrics.RateLimitHits.WithLabelValues(accountID).Inc()
		m.logger.WithContext(ctx).Warnf("account %s over send budget, retry in %v", accountID, result.RetryIn)
		return fmt.Errorf("%w: retry in %v", ErrThrottled, result.RetryIn)
	}

	return nil
}

// BlockAccount pauses sends for an account, used when the provider answers
// 429 with a Retry-After.
func (m *Manager) BlockAccount(ctx context.Context, accountID string, d time.Duration) error {
	return m.limiter.BlockFor(ctx, accountID, d)
}

// ParseRetryAfter parses a Retry-After header value
// Returns the duration to wait before retrying
func ParseRetryAfter(value string) (time.Duration, error) {
	// Try parsing as seconds
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	// Try parsing as HTTP date (RFC 1123)
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return time.Until(t), nil
	}

	return 0, fmt.Errorf("invalid Retry-After value: %s", value)
}

// Reset clears the send window for an account
func (m *Manager) Reset(ctx context.Context, accountID string) error {
	return m.limiter.Reset(ctx, accountID)
}

// Remaining returns how many sends the account has left in the window
func (m *Manager) Remaining(ctx context.Context, accountID string) (int64, error) {
	return m.limiter.GetRemaining(ctx, accountID, m.limit, m.window)
}
