package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/status"
)

const maxClassifyAssignments = 1000

func RegisterClassifyRoutes(router fiber.Router) {
	router.Group("/v1").Post("/assignments/classify", ClassifyAssignments)
}

type classifyRequest struct {
	BudgetStatus string              `json:"budgetStatus"`
	Assignments  []assignmentRequest `json:"assignments"`
}

type assignmentRequest struct {
	UUID         string                  `json:"uuid"`
	LearnerEmail string                  `json:"learnerEmail"`
	LearnerState string                  `json:"learnerState"`
	ContentKey   string                  `json:"contentKey"`
	ErrorReason  *assignmentErrorRequest `json:"errorReason"`
}

type assignmentErrorRequest struct {
	ActionType  string `json:"actionType"`
	ErrorReason string `json:"errorReason"`
}

type classifiedAssignment struct {
	UUID string `json:"uuid"`
	status.Status
}

type classifyResponse struct {
	Data []classifiedAssignment `json:"data"`
}

// ClassifyAssignments maps each assignment to its status chip. A blank budget status is
// treated as active.
func ClassifyAssignments(c *fiber.Ctx) error {
	var req classifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Assignments) > maxClassifyAssignments {
		return toHTTPError(fmt.Errorf("%w: at most %d assignments per request", domain.ErrValidation, maxClassifyAssignments))
	}

	budgetStatus := domain.BudgetStatusActive
	if strings.TrimSpace(req.BudgetStatus) != "" {
		parsed, err := domain.ParseBudgetStatusFromString(req.BudgetStatus)
		if err != nil {
			return toHTTPError(err)
		}
		budgetStatus = parsed
	}

	data := make([]classifiedAssignment, 0, len(req.Assignments))
	for _, item := range req.Assignments {
		assignment := &domain.Assignment{
			UUID:         item.UUID,
			LearnerEmail: item.LearnerEmail,
			LearnerState: domain.ParseLearnerState(item.LearnerState),
			ContentKey:   item.ContentKey,
		}
		if item.ErrorReason != nil {
			assignment.ErrorReason = &domain.AssignmentError{
				ActionType:  domain.ActionType(strings.ToLower(strings.TrimSpace(item.ErrorReason.ActionType))),
				ErrorReason: domain.ActionErrorCode(strings.ToLower(strings.TrimSpace(item.ErrorReason.ErrorReason))),
			}
		}

		data = append(data, classifiedAssignment{
			UUID:   item.UUID,
			Status: status.Classify(assignment, budgetStatus),
		})
	}

	return c.Status(fiber.StatusOK).JSON(classifyResponse{Data: data})
}
