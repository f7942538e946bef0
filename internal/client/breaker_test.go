package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/sony/gobreaker"
)

type fakeEnterpriseAPI struct {
	fetchFn    func(ctx context.Context, policyID string) (*domain.Budget, error)
	allocateFn func(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error)
}

func (f *fakeEnterpriseAPI) FetchSubsidyAccessPolicy(ctx context.Context, policyID string) (*domain.Budget, error) {
	if f.fetchFn == nil {
		return &domain.Budget{ID: policyID}, nil
	}
	return f.fetchFn(ctx, policyID)
}

func (f *fakeEnterpriseAPI) AllocateContentAssignments(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	if f.allocateFn == nil {
		return &domain.AllocationResult{}, nil
	}
	return f.allocateFn(ctx, policyID, req)
}

func TestBreakerClientOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	next := &fakeEnterpriseAPI{
		allocateFn: func(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error) {
			calls++
			return nil, &APIError{StatusCode: http.StatusBadGateway, Transient: true}
		},
	}

	c := NewBreakerClient(next, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		if _, err := c.AllocateContentAssignments(context.Background(), "p", domain.AllocationRequest{}); err == nil {
			t.Fatal("expected error")
		}
	}
	if c.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", c.State())
	}

	_, err := c.AllocateContentAssignments(context.Background(), "p", domain.AllocationRequest{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want ErrOpenState", err)
	}
	if ReasonOf(err) != domain.ReasonSystemError || !IsTransient(err) {
		t.Fatalf("open circuit error = %v, want transient system error", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestBreakerClientIgnoresUnprocessable(t *testing.T) {
	t.Parallel()

	next := &fakeEnterpriseAPI{
		allocateFn: func(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error) {
			return nil, &APIError{StatusCode: http.StatusUnprocessableEntity, Reason: domain.ReasonPolicySpendLimitReached}
		},
	}

	c := NewBreakerClient(next, BreakerSettings{ConsecutiveFailures: 1}, nil)

	for i := 0; i < 3; i++ {
		_, err := c.AllocateContentAssignments(context.Background(), "p", domain.AllocationRequest{})
		if ReasonOf(err) != domain.ReasonPolicySpendLimitReached {
			t.Fatalf("ReasonOf() = %s, want policy_spend_limit_reached", ReasonOf(err))
		}
	}
	if c.State() != gobreaker.StateClosed {
		t.Fatalf("state = %s, want closed", c.State())
	}
}

func TestBreakerClientPassesThroughBudget(t *testing.T) {
	t.Parallel()

	c := NewBreakerClient(&fakeEnterpriseAPI{}, DefaultBreakerSettings(), nil)

	budget, err := c.FetchSubsidyAccessPolicy(context.Background(), "policy-1")
	if err != nil {
		t.Fatalf("FetchSubsidyAccessPolicy() error = %v", err)
	}
	if budget.ID != "policy-1" {
		t.Fatalf("budget id = %s, want policy-1", budget.ID)
	}
}
