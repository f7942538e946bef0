package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/guard"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultSubmissionLimit  int64 = 30
	defaultSubmissionWindow       = time.Minute
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ guard.RateLimiter = (*SubmissionRateLimiter)(nil)

// SubmissionRateLimiter is a fixed-window limiter on allocation submissions per budget,
// shared by every API instance through Redis.
type SubmissionRateLimiter struct {
	client *goredis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
	script *goredis.Script
}

func NewSubmissionRateLimiter(client *goredis.Client, limit int, window time.Duration) (*SubmissionRateLimiter, error) {
	return newSubmissionRateLimiter(client, int64(limit), window, time.Now)
}

func newSubmissionRateLimiter(
	client *goredis.Client,
	limit int64,
	window time.Duration,
	nowFn func() time.Time,
) (*SubmissionRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limit <= 0 {
		limit = defaultSubmissionLimit
	}
	if window < time.Second {
		window = defaultSubmissionWindow
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &SubmissionRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    nowFn,
		script: allowScript,
	}, nil
}

func (r *SubmissionRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return false, fmt.Errorf("rate limit key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	windowSeconds := int64(r.window / time.Second)
	bucket := r.now().UTC().Unix() / windowSeconds
	redisKey := fmt.Sprintf("credit-engine:ratelimit:allocation:%s:%d", normalizedKey, bucket)

	result, err := r.script.Run(ctx, r.client, []string{redisKey}, r.limit, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}
