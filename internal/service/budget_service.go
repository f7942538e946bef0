package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/credit-engine/internal/client"
	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/observability"
	"github.com/kursadbilgin/credit-engine/internal/repository"
	"go.uber.org/zap"
)

// BudgetCache is the read-through store for budget lookups.
type BudgetCache interface {
	Get(ctx context.Context, policyID string) (*domain.Budget, bool, error)
	Set(ctx context.Context, budget *domain.Budget) error
	InvalidateBudgetCaches(ctx context.Context, policyID string, enterpriseID string) error
}

// BudgetService serves budget reads from the cache, falling back to the enterprise API,
// and exposes the allocation attempt audit log.
type BudgetService struct {
	api      client.EnterpriseAPI
	cache    BudgetCache
	attempts repository.AttemptRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewBudgetService(
	api client.EnterpriseAPI,
	cache BudgetCache,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) *BudgetService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BudgetService{
		api:      api,
		cache:    cache,
		attempts: attempts,
		logger:   logger,
	}
}

func (s *BudgetService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// GetBudget returns the budget for a policy. Cache failures degrade to a direct fetch.
func (s *BudgetService) GetBudget(ctx context.Context, policyID string) (*domain.Budget, error) {
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return nil, fmt.Errorf("%w: policy id is required", domain.ErrValidation)
	}

	log := observability.WithContextLogger(s.logger, ctx)

	if s.cache != nil {
		budget, hit, err := s.cache.Get(ctx, policyID)
		if err != nil {
			log.Warn("budget cache read failed", zap.String("policyId", policyID), zap.Error(err))
		}
		if hit {
			s.metrics.IncBudgetCacheLookup(true)
			return budget, nil
		}
		s.metrics.IncBudgetCacheLookup(false)
	}

	budget, err := s.api.FetchSubsidyAccessPolicy(ctx, policyID)
	if err != nil {
		log.Error("failed to fetch budget", zap.String("policyId", policyID), zap.Error(err))
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, budget); err != nil {
			log.Warn("budget cache write failed", zap.String("policyId", policyID), zap.Error(err))
		}
	}

	return budget, nil
}

func (s *BudgetService) InvalidateBudgetCaches(ctx context.Context, policyID string, enterpriseID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateBudgetCaches(ctx, policyID, enterpriseID)
}

func (s *BudgetService) ListAttempts(ctx context.Context, policyID string, limit int) ([]domain.AllocationAttempt, error) {
	if s.attempts == nil {
		return nil, fmt.Errorf("attempt repository is not configured")
	}
	return s.attempts.ListByPolicy(ctx, policyID, limit)
}
