// Package guard gates allocation submissions with a rate limit and a mutual-exclusion lock.
package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

// RateLimiter caps how many submissions a key may make per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Locker grants exclusive ownership of a key. It returns domain.ErrSubmissionInFlight when
// the key is already held.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Guard applies the rate limit first, then takes the lock.
type Guard struct {
	limiter RateLimiter
	locker  Locker
}

// New builds a Guard. Either dependency may be nil to skip that check.
func New(limiter RateLimiter, locker Locker) *Guard {
	return &Guard{
		limiter: limiter,
		locker:  locker,
	}
}

// Acquire admits one submission for key. The returned release must be called once the
// submission resolves.
func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return nil, fmt.Errorf("%w: submission key is required", domain.ErrValidation)
	}

	if g.limiter != nil {
		allowed, err := g.limiter.Allow(ctx, rateKey(normalizedKey))
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: too many allocation submissions for %s", domain.ErrRateLimited, normalizedKey)
		}
	}

	if g.locker == nil {
		return func() {}, nil
	}
	return g.locker.Lock(ctx, normalizedKey)
}

// rateKey limits per budget: the policy id is everything before the first colon.
func rateKey(key string) string {
	if i := strings.Index(key, ":"); i > 0 {
		return key[:i]
	}
	return key
}
