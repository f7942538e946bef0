package domain

import (
	"fmt"
	"strings"
)

// AllocationErrorReason is the machine-readable cause of a failed allocation.
type AllocationErrorReason string

const (
	ReasonNone                    AllocationErrorReason = ""
	ReasonContentNotInCatalog     AllocationErrorReason = "content_not_in_catalog"
	ReasonNotEnoughValueInSubsidy AllocationErrorReason = "not_enough_value_in_subsidy"
	ReasonPolicySpendLimitReached AllocationErrorReason = "policy_spend_limit_reached"
	ReasonSystemError             AllocationErrorReason = "system_error"
)

func (r AllocationErrorReason) String() string { return string(r) }

// IsFunding reports whether the reason is a budget funding shortfall.
func (r AllocationErrorReason) IsFunding() bool {
	return r == ReasonNotEnoughValueInSubsidy || r == ReasonPolicySpendLimitReached
}

// ParseAllocationErrorReason normalizes a backend reason. Blank input maps to ReasonNone;
// unrecognized codes are preserved so they can be logged and routed as system errors.
func ParseAllocationErrorReason(s string) AllocationErrorReason {
	return AllocationErrorReason(strings.ToLower(strings.TrimSpace(s)))
}

// AllocationRequest is an in-flight, not-yet-persisted allocation intent.
type AllocationRequest struct {
	ContentKey        string
	ContentPriceCents int64
	LearnerEmails     []string
}

func (r AllocationRequest) Validate() error {
	if strings.TrimSpace(r.ContentKey) == "" {
		return fmt.Errorf("%w: content key is required", ErrValidation)
	}
	if r.ContentPriceCents < 0 {
		return fmt.Errorf("%w: content price must be non-negative (got %d)", ErrValidation, r.ContentPriceCents)
	}
	if len(r.LearnerEmails) == 0 {
		return fmt.Errorf("%w: at least one learner email is required", ErrValidation)
	}
	return nil
}

// Clone returns a copy that does not share the email slice.
func (r AllocationRequest) Clone() AllocationRequest {
	emails := make([]string, len(r.LearnerEmails))
	copy(emails, r.LearnerEmails)
	r.LearnerEmails = emails
	return r
}

// AllocationResult is the backend response to a successful allocation.
type AllocationResult struct {
	Created  []Assignment
	Updated  []Assignment
	NoChange []Assignment
}

// TotalLearnersAllocated counts learners newly allocated or re-allocated by the call.
func (r *AllocationResult) TotalLearnersAllocated() int {
	if r == nil {
		return 0
	}
	return len(r.Created) + len(r.Updated)
}

// TotalLearnersAlreadyAllocated counts learners that already held the assignment.
func (r *AllocationResult) TotalLearnersAlreadyAllocated() int {
	if r == nil {
		return 0
	}
	return len(r.NoChange)
}
