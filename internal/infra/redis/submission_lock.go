package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/guard"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockTTL = 60 * time.Second
	unlockTimeout  = 2 * time.Second
)

var _ guard.Locker = (*SubmissionLock)(nil)

// SubmissionLock is a redsync mutex per budget and content key. The TTL bounds how long a
// crashed instance can block submissions.
type SubmissionLock struct {
	redsync *redsync.Redsync
	ttl     time.Duration
	logger  *zap.Logger
}

func NewSubmissionLock(client *goredis.Client, ttl time.Duration, logger *zap.Logger) (*SubmissionLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubmissionLock{
		redsync: redsync.New(redsyncgoredis.NewPool(client)),
		ttl:     ttl,
		logger:  logger,
	}, nil
}

func (l *SubmissionLock) Lock(ctx context.Context, key string) (func(), error) {
	normalizedKey := strings.TrimSpace(key)
	if normalizedKey == "" {
		return nil, fmt.Errorf("%w: lock key is required", domain.ErrValidation)
	}

	mutex := l.redsync.NewMutex(
		"credit-engine:lock:allocation:"+normalizedKey,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isLockContention(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSubmissionInFlight, normalizedKey)
		}
		return nil, fmt.Errorf("failed to acquire submission lock for %s: %w", normalizedKey, err)
	}

	unlock := func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()

		if ok, err := mutex.UnlockContext(unlockCtx); err != nil || !ok {
			l.logger.Warn("failed to release submission lock",
				zap.String("key", normalizedKey),
				zap.Error(err),
			)
		}
	}
	return unlock, nil
}

func isLockContention(err error) bool {
	var taken *redsync.ErrTaken
	return errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken)
}
