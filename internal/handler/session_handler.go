package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/credit-engine/internal/allocation"
	"github.com/kursadbilgin/credit-engine/internal/balance"
	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/roster"
)

type SessionService interface {
	Start(ctx context.Context, params allocation.StartParams) (*allocation.Snapshot, error)
	Get(id string) (*allocation.Snapshot, error)
	UpdateRoster(ctx context.Context, id string, emails []string) (*allocation.Snapshot, error)
	UpdateRosterDebounced(ctx context.Context, id string, emails []string) (uint64, error)
	Allocate(ctx context.Context, id string) (*allocation.Snapshot, error)
	Retry(ctx context.Context, id string) (*allocation.Snapshot, error)
	Close(ctx context.Context, id string) (*allocation.Snapshot, error)
	Reopen(ctx context.Context, id string) (*allocation.Snapshot, error)
	ErrorDialogRetry(ctx context.Context, id string) (*allocation.Snapshot, error)
	ErrorDialogExit(ctx context.Context, id string) (*allocation.Snapshot, error)
	DisplayLimit() int
}

type SessionHandler struct {
	service SessionService
}

func NewSessionHandler(service SessionService) (*SessionHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("session service is required")
	}
	return &SessionHandler{service: service}, nil
}

func RegisterSessionRoutes(router fiber.Router, service SessionService) error {
	h, err := NewSessionHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/budgets/:policyId/assignment-sessions", h.StartSession)
	v1.Get("/assignment-sessions/:id", h.GetSession)
	v1.Put("/assignment-sessions/:id/roster", h.ReplaceRoster)
	v1.Patch("/assignment-sessions/:id/roster", h.EditRoster)
	v1.Post("/assignment-sessions/:id/allocate", h.sessionAction(service.Allocate))
	v1.Post("/assignment-sessions/:id/retry", h.sessionAction(service.Retry))
	v1.Post("/assignment-sessions/:id/close", h.sessionAction(service.Close))
	v1.Post("/assignment-sessions/:id/open", h.sessionAction(service.Reopen))
	v1.Post("/assignment-sessions/:id/error-dialog/retry", h.sessionAction(service.ErrorDialogRetry))
	v1.Post("/assignment-sessions/:id/error-dialog/exit", h.sessionAction(service.ErrorDialogExit))

	return nil
}

type startSessionRequest struct {
	EnterpriseID      string `json:"enterpriseId"`
	ContentKey        string `json:"contentKey"`
	ContentPriceCents *int64 `json:"contentPriceCents"`
}

// rosterRequest accepts pasted free text, explicit entries and group member lists.
// They are merged in that order.
type rosterRequest struct {
	Text   string     `json:"text"`
	Emails []string   `json:"emails"`
	Groups [][]string `json:"groups"`
}

func (r rosterRequest) entries() []string {
	lists := make([][]string, 0, 2+len(r.Groups))
	lists = append(lists, roster.ParseRoster(r.Text), r.Emails)
	lists = append(lists, r.Groups...)
	return roster.MergeRoster(lists...)
}

type sessionResponse struct {
	ID                    string           `json:"id"`
	PolicyID              string           `json:"policyId"`
	EnterpriseID          string           `json:"enterpriseId"`
	ContentKey            string           `json:"contentKey"`
	ContentPriceCents     int64            `json:"contentPriceCents"`
	ContentPrice          string           `json:"contentPrice"`
	RemainingBalanceCents int64            `json:"remainingBalanceCents"`
	RemainingBalance      string           `json:"remainingBalance"`
	ModalOpen             bool             `json:"modalOpen"`
	State                 string           `json:"state"`
	ErrorReason           string           `json:"errorReason,omitempty"`
	Dialog                string           `json:"dialog"`
	DialogAllowsRetry     bool             `json:"dialogAllowsRetry"`
	Roster                rosterResponse   `json:"roster"`
	Verdict               *verdictResponse `json:"verdict,omitempty"`
	Toast                 *toastResponse   `json:"toast,omitempty"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

type rosterResponse struct {
	Generation  uint64   `json:"generation"`
	Count       int      `json:"count"`
	Visible     []string `json:"visible"`
	HiddenCount int      `json:"hiddenCount"`
	ShowMore    bool     `json:"showMore"`
}

type verdictResponse struct {
	IsValidInput                         bool                     `json:"isValidInput"`
	CanAllocate                          bool                     `json:"canAllocate"`
	LearnerEmails                        []string                 `json:"learnerEmails"`
	LearnerEmailsCount                   int                      `json:"learnerEmailsCount"`
	TotalAssignmentCostCents             int64                    `json:"totalAssignmentCostCents"`
	TotalAssignmentCost                  string                   `json:"totalAssignmentCost"`
	HasEnoughBalanceForAssignment        bool                     `json:"hasEnoughBalanceForAssignment"`
	RemainingBalanceAfterAssignmentCents int64                    `json:"remainingBalanceAfterAssignmentCents"`
	RemainingBalanceAfterAssignment      string                   `json:"remainingBalanceAfterAssignment"`
	ValidationError                      *validationErrorResponse `json:"validationError,omitempty"`
	DuplicateWarning                     *duplicateWarningResp    `json:"duplicateWarning,omitempty"`
}

type validationErrorResponse struct {
	Reason  string   `json:"reason"`
	Message string   `json:"message"`
	Emails  []string `json:"emails,omitempty"`
}

type duplicateWarningResp struct {
	Message string   `json:"message"`
	Emails  []string `json:"emails"`
}

type toastResponse struct {
	TotalLearnersAllocated        int `json:"totalLearnersAllocated"`
	TotalLearnersAlreadyAllocated int `json:"totalLearnersAlreadyAllocated"`
}

type rosterAcceptedResponse struct {
	SessionID  string `json:"sessionId"`
	Generation uint64 `json:"generation"`
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	var req startSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ContentPriceCents == nil {
		return toHTTPError(fmt.Errorf("%w: contentPriceCents is required", domain.ErrValidation))
	}

	snap, err := h.service.Start(c.UserContext(), allocation.StartParams{
		PolicyID:          strings.TrimSpace(c.Params("policyId")),
		EnterpriseID:      req.EnterpriseID,
		ContentKey:        req.ContentKey,
		ContentPriceCents: *req.ContentPriceCents,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.toSessionResponse(snap))
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	snap, err := h.service.Get(strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(h.toSessionResponse(snap))
}

// ReplaceRoster validates the roster immediately.
func (h *SessionHandler) ReplaceRoster(c *fiber.Ctx) error {
	var req rosterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	snap, err := h.service.UpdateRoster(c.UserContext(), strings.TrimSpace(c.Params("id")), req.entries())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(h.toSessionResponse(snap))
}

// EditRoster records keystroke-level edits; validation runs once input settles.
func (h *SessionHandler) EditRoster(c *fiber.Ctx) error {
	var req rosterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id := strings.TrimSpace(c.Params("id"))
	gen, err := h.service.UpdateRosterDebounced(c.UserContext(), id, req.entries())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(rosterAcceptedResponse{SessionID: id, Generation: gen})
}

func (h *SessionHandler) sessionAction(action func(ctx context.Context, id string) (*allocation.Snapshot, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := action(c.UserContext(), strings.TrimSpace(c.Params("id")))
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusOK).JSON(h.toSessionResponse(snap))
	}
}

func (h *SessionHandler) toSessionResponse(s *allocation.Snapshot) sessionResponse {
	if s == nil {
		return sessionResponse{}
	}

	display := roster.DisplayRoster(s.LearnerEmails, h.service.DisplayLimit())
	resp := sessionResponse{
		ID:                    s.ID,
		PolicyID:              s.PolicyID,
		EnterpriseID:          s.EnterpriseID,
		ContentKey:            s.ContentKey,
		ContentPriceCents:     s.ContentPriceCents,
		ContentPrice:          balance.FormatCents(s.ContentPriceCents),
		RemainingBalanceCents: s.RemainingBalanceCents,
		RemainingBalance:      balance.FormatCents(s.RemainingBalanceCents),
		ModalOpen:             s.ModalOpen,
		State:                 s.State.String(),
		ErrorReason:           s.ErrorReason.String(),
		Dialog:                s.Dialog.String(),
		DialogAllowsRetry:     s.Dialog.AllowsRetry(),
		Roster: rosterResponse{
			Generation:  s.RosterGeneration,
			Count:       len(s.LearnerEmails),
			Visible:     display.Visible,
			HiddenCount: display.HiddenCount,
			ShowMore:    display.ShowMore,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}

	if s.Verdict != nil {
		resp.Verdict = toVerdictResponse(s.Verdict)
	}
	if s.Toast != nil {
		resp.Toast = &toastResponse{
			TotalLearnersAllocated:        s.Toast.TotalLearnersAllocated,
			TotalLearnersAlreadyAllocated: s.Toast.TotalLearnersAlreadyAllocated,
		}
	}
	return resp
}

func toVerdictResponse(v *roster.Verdict) *verdictResponse {
	emails := v.LearnerEmails
	if emails == nil {
		emails = []string{}
	}

	resp := &verdictResponse{
		IsValidInput:                         v.IsValidInput,
		CanAllocate:                          v.CanAllocate,
		LearnerEmails:                        emails,
		LearnerEmailsCount:                   v.LearnerEmailsCount,
		TotalAssignmentCostCents:             v.TotalAssignmentCost,
		TotalAssignmentCost:                  balance.FormatCents(v.TotalAssignmentCost),
		HasEnoughBalanceForAssignment:        v.HasEnoughBalanceForAssignment,
		RemainingBalanceAfterAssignmentCents: v.RemainingBalanceAfterAssignment,
		RemainingBalanceAfterAssignment:      balance.FormatCents(v.RemainingBalanceAfterAssignment),
	}
	if v.ValidationError != nil {
		resp.ValidationError = &validationErrorResponse{
			Reason:  v.ValidationError.Reason.String(),
			Message: v.ValidationError.Message,
			Emails:  v.ValidationError.Emails,
		}
	}
	if v.DuplicateWarning != nil {
		resp.DuplicateWarning = &duplicateWarningResp{
			Message: v.DuplicateWarning.Message,
			Emails:  v.DuplicateWarning.Emails,
		}
	}
	return resp
}
