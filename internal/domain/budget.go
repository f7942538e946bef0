package domain

import (
	"fmt"
	"strings"
	"time"
)

// BudgetStatus is the lifecycle status of a subsidy access policy.
type BudgetStatus string

const (
	BudgetStatusActive    BudgetStatus = "active"
	BudgetStatusScheduled BudgetStatus = "scheduled"
	BudgetStatusExpired   BudgetStatus = "expired"
	BudgetStatusRetired   BudgetStatus = "retired"
)

func (s BudgetStatus) String() string { return string(s) }

func (s BudgetStatus) IsValid() bool {
	switch s {
	case BudgetStatusActive, BudgetStatusScheduled, BudgetStatusExpired, BudgetStatusRetired:
		return true
	}
	return false
}

// IsTerminal reports whether assignments under this budget can no longer progress.
func (s BudgetStatus) IsTerminal() bool {
	return s == BudgetStatusExpired || s == BudgetStatusRetired
}

func ParseBudgetStatusFromString(s string) (BudgetStatus, error) {
	st := BudgetStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid budget status %q", ErrValidation, s)
	}
	return st, nil
}

// BudgetAggregates holds server-computed spend figures. Amounts are in cents.
type BudgetAggregates struct {
	SpendAvailableUsdCents int64
}

// Budget is a Learner Credit funding pool (subsidy access policy).
// Aggregates are owned by the backend and are only ever refetched, never adjusted locally.
type Budget struct {
	ID                        string
	DisplayName               string
	EnterpriseID              string
	IsAssignable              bool
	IsSubsidyActive           bool
	IsRetired                 bool
	CatalogUUID               string
	SubsidyActiveDatetime     *time.Time
	SubsidyExpirationDatetime *time.Time
	IsLateRedemptionAllowed   bool
	Aggregates                BudgetAggregates
}

// Status derives the lifecycle status of the budget at the given instant.
func (b *Budget) Status(now time.Time) BudgetStatus {
	if b == nil {
		return BudgetStatusExpired
	}
	if b.IsRetired {
		return BudgetStatusRetired
	}
	if b.SubsidyExpirationDatetime != nil && !now.Before(*b.SubsidyExpirationDatetime) {
		return BudgetStatusExpired
	}
	if b.SubsidyActiveDatetime != nil && now.Before(*b.SubsidyActiveDatetime) {
		return BudgetStatusScheduled
	}
	return BudgetStatusActive
}

// CanAssign reports whether new allocations may be made against the budget.
func (b *Budget) CanAssign(now time.Time) bool {
	if b == nil {
		return false
	}
	return b.IsAssignable && b.IsSubsidyActive && b.Status(now) == BudgetStatusActive
}
