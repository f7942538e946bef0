package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

type fakeLimiter struct {
	allowFn func(ctx context.Context, key string) (bool, error)
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return f.allowFn(ctx, key)
}

type fakeLocker struct {
	held map[string]bool
}

func (f *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	if f.held[key] {
		return nil, domain.ErrSubmissionInFlight
	}
	f.held[key] = true
	return func() { delete(f.held, key) }, nil
}

func TestGuardAcquire(t *testing.T) {
	t.Parallel()

	var limitedKey string
	limiter := &fakeLimiter{allowFn: func(ctx context.Context, key string) (bool, error) {
		limitedKey = key
		return true, nil
	}}
	locker := &fakeLocker{held: map[string]bool{}}
	g := New(limiter, locker)

	release, err := g.Acquire(context.Background(), "policy-1:course-v1:edX+DemoX")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if limitedKey != "policy-1" {
		t.Fatalf("rate limit key = %q, want policy-1", limitedKey)
	}

	if _, err := g.Acquire(context.Background(), "policy-1:course-v1:edX+DemoX"); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Fatalf("second Acquire() error = %v, want ErrSubmissionInFlight", err)
	}

	release()
	if _, err := g.Acquire(context.Background(), "policy-1:course-v1:edX+DemoX"); err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
}

func TestGuardRateLimited(t *testing.T) {
	t.Parallel()

	locker := &fakeLocker{held: map[string]bool{}}
	g := New(&fakeLimiter{allowFn: func(ctx context.Context, key string) (bool, error) {
		return false, nil
	}}, locker)

	_, err := g.Acquire(context.Background(), "policy-1:c")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("Acquire() error = %v, want ErrRateLimited", err)
	}
	if len(locker.held) != 0 {
		t.Fatal("lock must not be taken when rate limited")
	}
}

func TestGuardLimiterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("redis down")
	g := New(&fakeLimiter{allowFn: func(ctx context.Context, key string) (bool, error) {
		return false, boom
	}}, nil)

	if _, err := g.Acquire(context.Background(), "p:c"); !errors.Is(err, boom) {
		t.Fatalf("Acquire() error = %v, want %v", err, boom)
	}
}

func TestGuardWithoutDependencies(t *testing.T) {
	t.Parallel()

	g := New(nil, nil)
	release, err := g.Acquire(context.Background(), "p:c")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()

	if _, err := g.Acquire(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Acquire() error = %v, want ErrValidation", err)
	}
}
