package allocation

import (
	"context"
	"sync"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

type fakeAllocator struct {
	mu         sync.Mutex
	calls      []domain.AllocationRequest
	allocateFn func(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error)
}

func (f *fakeAllocator) AllocateContentAssignments(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Clone())
	f.mu.Unlock()

	if f.allocateFn == nil {
		return &domain.AllocationResult{}, nil
	}
	return f.allocateFn(ctx, policyID, req)
}

func (f *fakeAllocator) Calls() []domain.AllocationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AllocationRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeBudgets struct {
	mu    sync.Mutex
	calls int
	getFn func(ctx context.Context, policyID string) (*domain.Budget, error)
}

func (f *fakeBudgets) GetBudget(ctx context.Context, policyID string) (*domain.Budget, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.getFn == nil {
		return assignableBudget(policyID, 10000), nil
	}
	return f.getFn(ctx, policyID)
}

func (f *fakeBudgets) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCaches struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCaches) InvalidateBudgetCaches(ctx context.Context, policyID string, enterpriseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, policyID+"/"+enterpriseID)
	return nil
}

func (f *fakeCaches) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []Toast
}

func (f *fakeNotifier) AllocationSucceeded(ctx context.Context, toast Toast) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, toast)
}

func (f *fakeNotifier) Toasts() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Toast(nil), f.toasts...)
}

type fakeGuard struct {
	acquireFn func(ctx context.Context, key string) (func(), error)
}

func (f *fakeGuard) Acquire(ctx context.Context, key string) (func(), error) {
	if f.acquireFn == nil {
		return func() {}, nil
	}
	return f.acquireFn(ctx, key)
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts []domain.AllocationAttempt
}

func (f *fakeAttempts) Create(ctx context.Context, a *domain.AllocationAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttempts) All() []domain.AllocationAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AllocationAttempt(nil), f.attempts...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.BudgetEvent
}

func (f *fakeEvents) PublishBudgetEvent(ctx context.Context, event domain.BudgetEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) All() []domain.BudgetEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.BudgetEvent(nil), f.events...)
}

func assignableBudget(policyID string, availableCents int64) *domain.Budget {
	return &domain.Budget{
		ID:              policyID,
		EnterpriseID:    "ent-1",
		IsAssignable:    true,
		IsSubsidyActive: true,
		Aggregates:      domain.BudgetAggregates{SpendAvailableUsdCents: availableCents},
	}
}
