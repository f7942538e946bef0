package allocation

import (
	"context"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"go.uber.org/zap"
)

// Allocator submits allocations to the backend.
type Allocator interface {
	AllocateContentAssignments(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error)
}

// BudgetFetcher reads the current budget, including its available balance.
type BudgetFetcher interface {
	GetBudget(ctx context.Context, policyID string) (*domain.Budget, error)
}

// CacheInvalidator drops cached budget and assignment views after a mutation.
type CacheInvalidator interface {
	InvalidateBudgetCaches(ctx context.Context, policyID string, enterpriseID string) error
}

// Notifier surfaces a successful allocation to the admin.
type Notifier interface {
	AllocationSucceeded(ctx context.Context, toast Toast)
}

// SubmissionGuard serializes submissions for the same budget and content across instances.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// AttemptRecorder persists the audit trail of allocation calls.
type AttemptRecorder interface {
	Create(ctx context.Context, a *domain.AllocationAttempt) error
}

// EventPublisher announces budget balance changes.
type EventPublisher interface {
	PublishBudgetEvent(ctx context.Context, event domain.BudgetEvent) error
}

// LogNotifier reports successful allocations through the logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) AllocationSucceeded(ctx context.Context, toast Toast) {
	n.logger.Info("learners assigned",
		zap.String("sessionId", toast.SessionID),
		zap.Int("totalLearnersAllocated", toast.TotalLearnersAllocated),
		zap.Int("totalLearnersAlreadyAllocated", toast.TotalLearnersAlreadyAllocated),
	)
}
