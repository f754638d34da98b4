package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

// slidingWindowScript prunes, counts and conditionally records an attempt in
// one round trip so concurrent callers across replicas cannot overshoot the limit.
// Scores are unix milliseconds.
//
// KEYS[1] window key
// ARGV[1] now, ARGV[2] window, ARGV[3] limit, ARGV[4] member
// Returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end

if count >= limit then
	return {0, count, oldest}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, oldest}
`)

// SlidingWindowConfig defines configuration for the sliding window limiter.
type SlidingWindowConfig struct {
	KeyPrefix   string
	MaxRequests int
	Window      time.Duration
}

// RateLimitRepository enforces sliding-window limits with Redis sorted sets,
// one set per identifier. It is the shared-state counterpart of the in-memory limiter.
type RateLimitRepository struct {
	client redis.Scripter
	cfg    SlidingWindowConfig
	now    func() time.Time
}

var _ port.RateLimiter = (*RateLimitRepository)(nil)

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client redis.Scripter, cfg SlidingWindowConfig) (*RateLimitRepository, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.MaxRequests <= 0 || cfg.Window < time.Millisecond {
		return nil, fmt.Errorf("invalid sliding window: limit=%d window=%s", cfg.MaxRequests, cfg.Window)
	}
	return &RateLimitRepository{client: client, cfg: cfg, now: time.Now}, nil
}

// WithClock overrides the time source.
func (r *RateLimitRepository) WithClock(now func() time.Time) *RateLimitRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Admit records an attempt for identifier when it fits in the window.
func (r *RateLimitRepository) Admit(ctx context.Context, identifier string) (port.RateLimitDecision, error) {
	now := r.now()
	nowMs := now.UnixMilli()
	windowMs := r.cfg.Window.Milliseconds()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	values, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.key(identifier)},
		nowMs, windowMs, r.cfg.MaxRequests, member,
	).Int64Slice()
	if err != nil {
		return port.RateLimitDecision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(values) != 3 {
		return port.RateLimitDecision{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(values))
	}

	allowed, count, oldest := values[0] == 1, int(values[1]), values[2]
	resetAt := time.UnixMilli(oldest + windowMs)

	decision := port.RateLimitDecision{
		Allowed: allowed,
		Limit:   r.cfg.MaxRequests,
		ResetAt: resetAt,
	}
	if allowed {
		decision.Remaining = max(r.cfg.MaxRequests-count, 0)
	} else {
		decision.RetryAfter = max(resetAt.Sub(now), 0)
	}
	return decision, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}
