package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptOutcome is how a single allocation call resolved.
type AttemptOutcome string

const (
	AttemptOutcomeSuccess       AttemptOutcome = "success"
	AttemptOutcomeUnprocessable AttemptOutcome = "unprocessable"
	AttemptOutcomeSystemError   AttemptOutcome = "system_error"
)

func (o AttemptOutcome) String() string { return string(o) }

func (o AttemptOutcome) IsValid() bool {
	switch o {
	case AttemptOutcomeSuccess, AttemptOutcomeUnprocessable, AttemptOutcomeSystemError:
		return true
	}
	return false
}

func ParseAttemptOutcomeFromString(s string) (AttemptOutcome, error) {
	o := AttemptOutcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt outcome %q", ErrValidation, s)
	}
	return o, nil
}

// AllocationAttempt records one allocation call against a budget for auditing.
type AllocationAttempt struct {
	ID                    string
	SessionID             string
	PolicyID              string
	EnterpriseID          string
	ContentKey            string
	ContentPriceCents     int64
	LearnerCount          int
	Outcome               AttemptOutcome
	ErrorReason           AllocationErrorReason
	StatusCode            *int
	Error                 *string
	TotalAllocated        int
	TotalAlreadyAllocated int
	Retry                 bool
	CreatedAt             time.Time
}
