package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultBudgetCacheTTL = 30 * time.Second

type cachedBudget struct {
	ID                        string     `json:"id"`
	DisplayName               string     `json:"display_name"`
	EnterpriseID              string     `json:"enterprise_id"`
	IsAssignable              bool       `json:"is_assignable"`
	IsSubsidyActive           bool       `json:"is_subsidy_active"`
	IsRetired                 bool       `json:"retired"`
	CatalogUUID               string     `json:"catalog_uuid"`
	SubsidyActiveDatetime     *time.Time `json:"subsidy_active_datetime,omitempty"`
	SubsidyExpirationDatetime *time.Time `json:"subsidy_expiration_datetime,omitempty"`
	IsLateRedemptionAllowed   bool       `json:"is_late_redemption_allowed"`
	SpendAvailableUsdCents    int64      `json:"spend_available_usd_cents"`
}

func toCachedBudget(b *domain.Budget) cachedBudget {
	return cachedBudget{
		ID:                        b.ID,
		DisplayName:               b.DisplayName,
		EnterpriseID:              b.EnterpriseID,
		IsAssignable:              b.IsAssignable,
		IsSubsidyActive:           b.IsSubsidyActive,
		IsRetired:                 b.IsRetired,
		CatalogUUID:               b.CatalogUUID,
		SubsidyActiveDatetime:     b.SubsidyActiveDatetime,
		SubsidyExpirationDatetime: b.SubsidyExpirationDatetime,
		IsLateRedemptionAllowed:   b.IsLateRedemptionAllowed,
		SpendAvailableUsdCents:    b.Aggregates.SpendAvailableUsdCents,
	}
}

func (c cachedBudget) toDomain() *domain.Budget {
	return &domain.Budget{
		ID:                        c.ID,
		DisplayName:               c.DisplayName,
		EnterpriseID:              c.EnterpriseID,
		IsAssignable:              c.IsAssignable,
		IsSubsidyActive:           c.IsSubsidyActive,
		IsRetired:                 c.IsRetired,
		CatalogUUID:               c.CatalogUUID,
		SubsidyActiveDatetime:     c.SubsidyActiveDatetime,
		SubsidyExpirationDatetime: c.SubsidyExpirationDatetime,
		IsLateRedemptionAllowed:   c.IsLateRedemptionAllowed,
		Aggregates:                domain.BudgetAggregates{SpendAvailableUsdCents: c.SpendAvailableUsdCents},
	}
}

// BudgetCache stores budget reads keyed by policy id. Each enterprise keeps a set of its
// cached policy keys so every budget view of the enterprise can be dropped at once.
type BudgetCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewBudgetCache(client *goredis.Client, ttl time.Duration) (*BudgetCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultBudgetCacheTTL
	}
	return &BudgetCache{client: client, ttl: ttl}, nil
}

func budgetKey(policyID string) string {
	return "credit-engine:budget:" + strings.TrimSpace(policyID)
}

func enterpriseBudgetsKey(enterpriseID string) string {
	return "credit-engine:enterprise:" + strings.TrimSpace(enterpriseID) + ":budgets"
}

// Get returns the cached budget. A miss is reported with hit=false and a nil error.
func (c *BudgetCache) Get(ctx context.Context, policyID string) (*domain.Budget, bool, error) {
	raw, err := c.client.Get(ctx, budgetKey(policyID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached budget %s: %w", policyID, err)
	}

	var cached cachedBudget
	if err := json.Unmarshal(raw, &cached); err != nil {
		// Unreadable entries are treated as a miss and overwritten on the next Set.
		return nil, false, nil
	}
	return cached.toDomain(), true, nil
}

func (c *BudgetCache) Set(ctx context.Context, budget *domain.Budget) error {
	if budget == nil || strings.TrimSpace(budget.ID) == "" {
		return fmt.Errorf("%w: budget id is required", domain.ErrValidation)
	}

	raw, err := json.Marshal(toCachedBudget(budget))
	if err != nil {
		return fmt.Errorf("failed to encode budget %s: %w", budget.ID, err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, budgetKey(budget.ID), raw, c.ttl)
	if strings.TrimSpace(budget.EnterpriseID) != "" {
		setKey := enterpriseBudgetsKey(budget.EnterpriseID)
		pipe.SAdd(ctx, setKey, budget.ID)
		pipe.Expire(ctx, setKey, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache budget %s: %w", budget.ID, err)
	}
	return nil
}

// InvalidateBudgetCaches drops the policy entry and every budget cached for the enterprise.
func (c *BudgetCache) InvalidateBudgetCaches(ctx context.Context, policyID string, enterpriseID string) error {
	keys := make([]string, 0, 4)
	if strings.TrimSpace(policyID) != "" {
		keys = append(keys, budgetKey(policyID))
	}

	if strings.TrimSpace(enterpriseID) != "" {
		setKey := enterpriseBudgetsKey(enterpriseID)
		members, err := c.client.SMembers(ctx, setKey).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("failed to list cached budgets for enterprise %s: %w", enterpriseID, err)
		}
		for _, member := range members {
			keys = append(keys, budgetKey(member))
		}
		keys = append(keys, setKey)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate budget caches: %w", err)
	}
	return nil
}
