package client

import (
	"time"

	"github.com/kursadbilgin/credit-engine/internal/balance"
	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/shopspring/decimal"
)

type policyAggregates struct {
	SpendAvailableUSD decimal.Decimal `json:"spend_available_usd"`
}

type policyResponse struct {
	UUID                      string           `json:"uuid"`
	DisplayName               string           `json:"display_name"`
	EnterpriseCustomerUUID    string           `json:"enterprise_customer_uuid"`
	IsAssignable              bool             `json:"is_assignable"`
	IsSubsidyActive           bool             `json:"is_subsidy_active"`
	Retired                   bool             `json:"retired"`
	CatalogUUID               string           `json:"catalog_uuid"`
	SubsidyActiveDatetime     *time.Time       `json:"subsidy_active_datetime"`
	SubsidyExpirationDatetime *time.Time       `json:"subsidy_expiration_datetime"`
	IsLateRedemptionAllowed   bool             `json:"is_late_redemption_allowed"`
	Aggregates                policyAggregates `json:"aggregates"`
}

func (p policyResponse) toDomain() *domain.Budget {
	available := balance.CentsFromUSD(p.Aggregates.SpendAvailableUSD)
	if available < 0 {
		available = 0
	}

	return &domain.Budget{
		ID:                        p.UUID,
		DisplayName:               p.DisplayName,
		EnterpriseID:              p.EnterpriseCustomerUUID,
		IsAssignable:              p.IsAssignable,
		IsSubsidyActive:           p.IsSubsidyActive,
		IsRetired:                 p.Retired,
		CatalogUUID:               p.CatalogUUID,
		SubsidyActiveDatetime:     p.SubsidyActiveDatetime,
		SubsidyExpirationDatetime: p.SubsidyExpirationDatetime,
		IsLateRedemptionAllowed:   p.IsLateRedemptionAllowed,
		Aggregates: domain.BudgetAggregates{
			SpendAvailableUsdCents: available,
		},
	}
}

type allocateRequest struct {
	LearnerEmails     []string `json:"learner_emails"`
	ContentKey        string   `json:"content_key"`
	ContentPriceCents int64    `json:"content_price_cents"`
}

type assignmentErrorPayload struct {
	ActionType  string `json:"action_type"`
	ErrorReason string `json:"error_reason"`
}

type assignmentPayload struct {
	UUID         string                  `json:"uuid"`
	LearnerEmail string                  `json:"learner_email"`
	LearnerState string                  `json:"learner_state"`
	ContentKey   string                  `json:"content_key"`
	ErrorReason  *assignmentErrorPayload `json:"error_reason"`
}

func (a assignmentPayload) toDomain() domain.Assignment {
	out := domain.Assignment{
		UUID:         a.UUID,
		LearnerEmail: a.LearnerEmail,
		LearnerState: domain.ParseLearnerState(a.LearnerState),
		ContentKey:   a.ContentKey,
	}
	if a.ErrorReason != nil {
		out.ErrorReason = &domain.AssignmentError{
			ActionType:  domain.ActionType(a.ErrorReason.ActionType),
			ErrorReason: domain.ActionErrorCode(a.ErrorReason.ErrorReason),
		}
	}
	return out
}

type allocateResponse struct {
	Created  []assignmentPayload `json:"created"`
	Updated  []assignmentPayload `json:"updated"`
	NoChange []assignmentPayload `json:"no_change"`
}

func (r allocateResponse) toDomain() *domain.AllocationResult {
	return &domain.AllocationResult{
		Created:  assignmentsToDomain(r.Created),
		Updated:  assignmentsToDomain(r.Updated),
		NoChange: assignmentsToDomain(r.NoChange),
	}
}

func assignmentsToDomain(in []assignmentPayload) []domain.Assignment {
	out := make([]domain.Assignment, 0, len(in))
	for _, a := range in {
		out = append(out, a.toDomain())
	}
	return out
}

type unprocessableDetail struct {
	Reason string `json:"reason"`
}
