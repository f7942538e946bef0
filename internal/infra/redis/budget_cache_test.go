package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

func testBudget(id string, enterpriseID string, cents int64) *domain.Budget {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Budget{
		ID:                        id,
		DisplayName:               "Engineering",
		EnterpriseID:              enterpriseID,
		IsAssignable:              true,
		IsSubsidyActive:           true,
		SubsidyExpirationDatetime: &expires,
		Aggregates:                domain.BudgetAggregates{SpendAvailableUsdCents: cents},
	}
}

func TestBudgetCacheRoundTrip(t *testing.T) {
	t.Parallel()

	cache, err := NewBudgetCache(newTestRedisClient(t), time.Minute)
	if err != nil {
		t.Fatalf("NewBudgetCache() error = %v", err)
	}
	ctx := context.Background()

	if _, hit, err := cache.Get(ctx, "policy-1"); err != nil || hit {
		t.Fatalf("Get() on empty cache hit = %v, err = %v", hit, err)
	}

	if err := cache.Set(ctx, testBudget("policy-1", "ent-1", 12_500)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, hit, err := cache.Get(ctx, "policy-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !hit {
		t.Fatal("Get() hit = false, want true")
	}
	if got.Aggregates.SpendAvailableUsdCents != 12_500 {
		t.Fatalf("SpendAvailableUsdCents = %d, want 12500", got.Aggregates.SpendAvailableUsdCents)
	}
	if got.EnterpriseID != "ent-1" || !got.CanAssign(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("cached budget = %+v, want assignable budget of ent-1", got)
	}
}

func TestBudgetCacheInvalidateEnterprise(t *testing.T) {
	t.Parallel()

	cache, err := NewBudgetCache(newTestRedisClient(t), time.Minute)
	if err != nil {
		t.Fatalf("NewBudgetCache() error = %v", err)
	}
	ctx := context.Background()

	for _, b := range []*domain.Budget{
		testBudget("policy-1", "ent-1", 100),
		testBudget("policy-2", "ent-1", 200),
		testBudget("policy-3", "ent-2", 300),
	} {
		if err := cache.Set(ctx, b); err != nil {
			t.Fatalf("Set(%s) error = %v", b.ID, err)
		}
	}

	if err := cache.InvalidateBudgetCaches(ctx, "policy-1", "ent-1"); err != nil {
		t.Fatalf("InvalidateBudgetCaches() error = %v", err)
	}

	for _, id := range []string{"policy-1", "policy-2"} {
		if _, hit, _ := cache.Get(ctx, id); hit {
			t.Fatalf("%s should have been invalidated", id)
		}
	}
	if _, hit, _ := cache.Get(ctx, "policy-3"); !hit {
		t.Fatal("policy-3 of another enterprise should stay cached")
	}
}

func TestBudgetCacheExpires(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	cache, err := NewBudgetCache(rdb, time.Second)
	if err != nil {
		t.Fatalf("NewBudgetCache() error = %v", err)
	}
	ctx := context.Background()

	if err := cache.Set(ctx, testBudget("policy-1", "ent-1", 100)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, hit, err := cache.Get(ctx, "policy-1"); err != nil || hit {
		t.Fatalf("Get() after ttl hit = %v, err = %v", hit, err)
	}
}

func TestBudgetCacheSetValidation(t *testing.T) {
	t.Parallel()

	cache, err := NewBudgetCache(newTestRedisClient(t), 0)
	if err != nil {
		t.Fatalf("NewBudgetCache() error = %v", err)
	}
	if cache.ttl != defaultBudgetCacheTTL {
		t.Fatalf("ttl = %s, want %s", cache.ttl, defaultBudgetCacheTTL)
	}
	if err := cache.Set(context.Background(), &domain.Budget{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Set() error = %v, want ErrValidation", err)
	}
}
