package service

import (
	"context"
	"sync"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/queue"
)

type fakeEnterpriseAPI struct {
	mu       sync.Mutex
	calls    int
	fetchFn  func(ctx context.Context, policyID string) (*domain.Budget, error)
	allocate func(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error)
}

func (f *fakeEnterpriseAPI) FetchSubsidyAccessPolicy(ctx context.Context, policyID string) (*domain.Budget, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fetchFn != nil {
		return f.fetchFn(ctx, policyID)
	}
	return &domain.Budget{ID: policyID, EnterpriseID: "ent-1"}, nil
}

func (f *fakeEnterpriseAPI) AllocateContentAssignments(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	if f.allocate != nil {
		return f.allocate(ctx, policyID, req)
	}
	return &domain.AllocationResult{}, nil
}

func (f *fakeEnterpriseAPI) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBudgetCache struct {
	mu           sync.Mutex
	entries      map[string]*domain.Budget
	getErr       error
	setErr       error
	invalidateFn func(ctx context.Context, policyID string, enterpriseID string) error
}

func newFakeBudgetCache() *fakeBudgetCache {
	return &fakeBudgetCache{entries: make(map[string]*domain.Budget)}
}

func (f *fakeBudgetCache) Get(ctx context.Context, policyID string) (*domain.Budget, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	b, ok := f.entries[policyID]
	return b, ok, nil
}

func (f *fakeBudgetCache) Set(ctx context.Context, budget *domain.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[budget.ID] = budget
	return nil
}

func (f *fakeBudgetCache) InvalidateBudgetCaches(ctx context.Context, policyID string, enterpriseID string) error {
	if f.invalidateFn != nil {
		return f.invalidateFn(ctx, policyID, enterpriseID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, policyID)
	return nil
}

type fakeAttemptRepo struct {
	createFn       func(ctx context.Context, a *domain.AllocationAttempt) error
	listByPolicyFn func(ctx context.Context, policyID string, limit int) ([]domain.AllocationAttempt, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.AllocationAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) ListByPolicy(ctx context.Context, policyID string, limit int) ([]domain.AllocationAttempt, error) {
	if f.listByPolicyFn != nil {
		return f.listByPolicyFn(ctx, policyID, limit)
	}
	return nil, nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}
