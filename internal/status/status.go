// Package status maps an assignment and its budget lifecycle to the status chip shown to admins.
package status

import (
	"github.com/kursadbilgin/credit-engine/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Variant is the closed set of status chips.
type Variant string

const (
	VariantNone                 Variant = "none"
	VariantIncompleteAssignment Variant = "incomplete_assignment"
	VariantNotifyingLearner     Variant = "notifying_learner"
	VariantWaitingForLearner    Variant = "waiting_for_learner"
	VariantFailedSystem         Variant = "failed_system"
	VariantFailedBadEmail       Variant = "failed_bad_email"
	VariantFailedCancellation   Variant = "failed_cancellation"
	VariantFailedReminder       Variant = "failed_reminder"
	VariantFailedRedemption     Variant = "failed_redemption"
	VariantGeneric              Variant = "generic"
)

func (v Variant) String() string { return string(v) }

// Status is the classifier output. Label and Remediation are empty for VariantNone.
type Status struct {
	Variant     Variant `json:"variant"`
	Label       string  `json:"label,omitempty"`
	Remediation string  `json:"remediation,omitempty"`
}

type chip struct {
	label       string
	remediation string
}

var chips = map[Variant]chip{
	VariantIncompleteAssignment: {
		label:       "Incomplete assignment",
		remediation: "This assignment was not completed before the budget expired or was retired. Funds for this assignment have been released.",
	},
	VariantNotifyingLearner: {
		label:       "Notifying learner",
		remediation: "The learner is being emailed about this assignment. Check back in a few minutes.",
	},
	VariantWaitingForLearner: {
		label:       "Waiting for learner",
		remediation: "The learner was notified and has not enrolled yet. You can send a reminder or cancel the assignment.",
	},
	VariantFailedSystem: {
		label:       "Failed: System",
		remediation: "Something went wrong behind the scenes. Cancel this assignment and try again, or contact support.",
	},
	VariantFailedBadEmail: {
		label:       "Failed: Bad email",
		remediation: "The notification email could not be delivered. Cancel this assignment and assign again with a corrected email address.",
	},
	VariantFailedCancellation: {
		label:       "Failed: Cancellation",
		remediation: "The assignment could not be cancelled. Try again, or contact support if the problem persists.",
	},
	VariantFailedReminder: {
		label:       "Failed: Reminder",
		remediation: "The reminder email could not be sent. Try again, or contact support if the problem persists.",
	},
	VariantFailedRedemption: {
		label:       "Failed: Redemption",
		remediation: "The learner could not be enrolled. Contact support to resolve the enrollment.",
	},
	VariantGeneric: {
		remediation: "This status is not recognized. Contact support if it does not change.",
	},
}

// Classify returns the status chip for a, given its budget's lifecycle status. The first
// matching rule wins and every input maps to exactly one variant.
func Classify(a *domain.Assignment, budgetStatus domain.BudgetStatus) Status {
	if a == nil {
		return Status{Variant: VariantNone}
	}

	state := domain.ParseLearnerState(a.LearnerState.String())
	if state == "" {
		return Status{Variant: VariantNone}
	}

	if budgetStatus.IsTerminal() {
		return build(VariantIncompleteAssignment)
	}

	switch state {
	case domain.LearnerStateNotifying:
		return build(VariantNotifyingLearner)
	case domain.LearnerStateWaiting:
		return build(VariantWaitingForLearner)
	case domain.LearnerStateFailed:
		return build(failedVariant(a.ErrorReason))
	}

	st := build(VariantGeneric)
	st.Label = cases.Title(language.English).String(state.String())
	return st
}

func failedVariant(reason *domain.AssignmentError) Variant {
	if reason == nil {
		return VariantFailedSystem
	}

	switch reason.ActionType {
	case domain.ActionTypeNotified:
		if reason.ErrorReason == domain.ActionErrorEmail {
			return VariantFailedBadEmail
		}
		return VariantFailedSystem
	case domain.ActionTypeCancelled:
		return VariantFailedCancellation
	case domain.ActionTypeReminded:
		return VariantFailedReminder
	case domain.ActionTypeRedeemed:
		return VariantFailedRedemption
	}
	return VariantFailedSystem
}

func build(v Variant) Status {
	c := chips[v]
	return Status{
		Variant:     v,
		Label:       c.label,
		Remediation: c.remediation,
	}
}
