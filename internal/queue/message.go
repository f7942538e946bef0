package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

// BudgetEventMessage is the broker payload announcing a budget balance change.
type BudgetEventMessage struct {
	EventID          string                 `json:"eventId"`
	CorrelationID    string                 `json:"correlationId,omitempty"`
	Type             domain.BudgetEventType `json:"type"`
	PolicyID         string                 `json:"policyId"`
	EnterpriseID     string                 `json:"enterpriseId,omitempty"`
	ContentKey       string                 `json:"contentKey,omitempty"`
	Allocated        int                    `json:"allocated,omitempty"`
	AlreadyAllocated int                    `json:"alreadyAllocated,omitempty"`
	OccurredAt       time.Time              `json:"occurredAt"`
}

func (m BudgetEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", m.Type)
	}
	if strings.TrimSpace(m.PolicyID) == "" {
		return fmt.Errorf("policyId is required")
	}
	return nil
}

func MessageFromEvent(e domain.BudgetEvent, correlationID string) BudgetEventMessage {
	return BudgetEventMessage{
		EventID:          e.EventID,
		CorrelationID:    correlationID,
		Type:             e.Type,
		PolicyID:         e.PolicyID,
		EnterpriseID:     e.EnterpriseID,
		ContentKey:       e.ContentKey,
		Allocated:        e.Allocated,
		AlreadyAllocated: e.AlreadyAllocated,
		OccurredAt:       e.OccurredAt,
	}
}

func (m BudgetEventMessage) ToDomain() domain.BudgetEvent {
	return domain.BudgetEvent{
		EventID:          m.EventID,
		Type:             m.Type,
		PolicyID:         m.PolicyID,
		EnterpriseID:     m.EnterpriseID,
		ContentKey:       m.ContentKey,
		Allocated:        m.Allocated,
		AlreadyAllocated: m.AlreadyAllocated,
		OccurredAt:       m.OccurredAt,
	}
}
