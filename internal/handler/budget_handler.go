package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/credit-engine/internal/balance"
	"github.com/kursadbilgin/credit-engine/internal/domain"
)

const (
	defaultAttemptLimit = 50
	maxAttemptLimit     = 200
)

type BudgetService interface {
	GetBudget(ctx context.Context, policyID string) (*domain.Budget, error)
	ListAttempts(ctx context.Context, policyID string, limit int) ([]domain.AllocationAttempt, error)
}

type BudgetHandler struct {
	service BudgetService
	now     func() time.Time
}

func NewBudgetHandler(service BudgetService) (*BudgetHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("budget service is required")
	}
	return &BudgetHandler{service: service, now: time.Now}, nil
}

func RegisterBudgetRoutes(router fiber.Router, service BudgetService) error {
	h, err := NewBudgetHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/budgets/:policyId", h.GetBudget)
	v1.Get("/budgets/:policyId/allocation-attempts", h.ListAttempts)

	return nil
}

type budgetResponse struct {
	ID                        string     `json:"id"`
	DisplayName               string     `json:"displayName"`
	EnterpriseID              string     `json:"enterpriseId"`
	Status                    string     `json:"status"`
	IsAssignable              bool       `json:"isAssignable"`
	CanAssign                 bool       `json:"canAssign"`
	SpendAvailableUsdCents    int64      `json:"spendAvailableUsdCents"`
	SpendAvailable            string     `json:"spendAvailable"`
	SubsidyActiveDatetime     *time.Time `json:"subsidyActiveDatetime,omitempty"`
	SubsidyExpirationDatetime *time.Time `json:"subsidyExpirationDatetime,omitempty"`
}

type attemptResponse struct {
	ID                    string    `json:"id"`
	SessionID             string    `json:"sessionId"`
	ContentKey            string    `json:"contentKey"`
	ContentPriceCents     int64     `json:"contentPriceCents"`
	LearnerCount          int       `json:"learnerCount"`
	Outcome               string    `json:"outcome"`
	ErrorReason           string    `json:"errorReason,omitempty"`
	StatusCode            *int      `json:"statusCode,omitempty"`
	Error                 *string   `json:"error,omitempty"`
	TotalAllocated        int       `json:"totalAllocated"`
	TotalAlreadyAllocated int       `json:"totalAlreadyAllocated"`
	Retry                 bool      `json:"retry"`
	CreatedAt             time.Time `json:"createdAt"`
}

type listAttemptsResponse struct {
	Data []attemptResponse `json:"data"`
	Meta attemptsMeta      `json:"meta"`
}

type attemptsMeta struct {
	PolicyID string `json:"policyId"`
	Limit    int    `json:"limit"`
	Count    int    `json:"count"`
}

func (h *BudgetHandler) GetBudget(c *fiber.Ctx) error {
	budget, err := h.service.GetBudget(c.UserContext(), strings.TrimSpace(c.Params("policyId")))
	if err != nil {
		return toHTTPError(err)
	}

	now := h.now().UTC()
	return c.Status(fiber.StatusOK).JSON(budgetResponse{
		ID:                        budget.ID,
		DisplayName:               budget.DisplayName,
		EnterpriseID:              budget.EnterpriseID,
		Status:                    budget.Status(now).String(),
		IsAssignable:              budget.IsAssignable,
		CanAssign:                 budget.CanAssign(now),
		SpendAvailableUsdCents:    budget.Aggregates.SpendAvailableUsdCents,
		SpendAvailable:            balance.FormatCents(budget.Aggregates.SpendAvailableUsdCents),
		SubsidyActiveDatetime:     budget.SubsidyActiveDatetime,
		SubsidyExpirationDatetime: budget.SubsidyExpirationDatetime,
	})
}

func (h *BudgetHandler) ListAttempts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultAttemptLimit)
	if limit < 1 || limit > maxAttemptLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxAttemptLimit))
	}

	policyID := strings.TrimSpace(c.Params("policyId"))
	attempts, err := h.service.ListAttempts(c.UserContext(), policyID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		data = append(data, attemptResponse{
			ID:                    a.ID,
			SessionID:             a.SessionID,
			ContentKey:            a.ContentKey,
			ContentPriceCents:     a.ContentPriceCents,
			LearnerCount:          a.LearnerCount,
			Outcome:               a.Outcome.String(),
			ErrorReason:           a.ErrorReason.String(),
			StatusCode:            a.StatusCode,
			Error:                 a.Error,
			TotalAllocated:        a.TotalAllocated,
			TotalAlreadyAllocated: a.TotalAlreadyAllocated,
			Retry:                 a.Retry,
			CreatedAt:             a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{
		Data: data,
		Meta: attemptsMeta{PolicyID: policyID, Limit: limit, Count: len(data)},
	})
}
