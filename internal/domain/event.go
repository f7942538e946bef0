package domain

import (
	"fmt"
	"strings"
	"time"
)

// BudgetEventType names a backend change that affects a budget's available balance.
type BudgetEventType string

const (
	BudgetEventAllocated BudgetEventType = "allocated"
	BudgetEventCancelled BudgetEventType = "cancelled"
	BudgetEventExpired   BudgetEventType = "expired"
)

func (t BudgetEventType) String() string { return string(t) }

func (t BudgetEventType) IsValid() bool {
	switch t {
	case BudgetEventAllocated, BudgetEventCancelled, BudgetEventExpired:
		return true
	}
	return false
}

func ParseBudgetEventTypeFromString(s string) (BudgetEventType, error) {
	t := BudgetEventType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid budget event type %q", ErrValidation, s)
	}
	return t, nil
}

// BudgetEvent announces that a budget's balance changed and cached views are stale.
type BudgetEvent struct {
	EventID          string
	Type             BudgetEventType
	PolicyID         string
	EnterpriseID     string
	ContentKey       string
	Allocated        int
	AlreadyAllocated int
	OccurredAt       time.Time
}

func (e BudgetEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: invalid budget event type %q", ErrValidation, e.Type)
	}
	if strings.TrimSpace(e.PolicyID) == "" {
		return fmt.Errorf("%w: policy id is required", ErrValidation)
	}
	return nil
}
