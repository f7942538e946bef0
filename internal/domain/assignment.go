package domain

import (
	"strings"
)

// LearnerState is the learner-facing progress of an assignment.
type LearnerState string

const (
	LearnerStateNotifying LearnerState = "notifying"
	LearnerStateWaiting   LearnerState = "waiting"
	LearnerStateFailed    LearnerState = "failed"
)

func (s LearnerState) String() string { return string(s) }

// IsKnown reports whether the state is one the status classifier handles explicitly.
// Unknown states are still carried through verbatim.
func (s LearnerState) IsKnown() bool {
	switch s {
	case LearnerStateNotifying, LearnerStateWaiting, LearnerStateFailed:
		return true
	}
	return false
}

func ParseLearnerState(s string) LearnerState {
	return LearnerState(strings.ToLower(strings.TrimSpace(s)))
}

// ActionType names the backend action that produced an assignment error.
type ActionType string

const (
	ActionTypeNotified  ActionType = "notified"
	ActionTypeCancelled ActionType = "cancelled"
	ActionTypeReminded  ActionType = "reminded"
	ActionTypeRedeemed  ActionType = "redeemed"
)

func (a ActionType) String() string { return string(a) }

func (a ActionType) IsValid() bool {
	switch a {
	case ActionTypeNotified, ActionTypeCancelled, ActionTypeReminded, ActionTypeRedeemed:
		return true
	}
	return false
}

// ActionErrorCode is the backend error code attached to a failed action.
type ActionErrorCode string

const (
	ActionErrorEmail    ActionErrorCode = "email_error"
	ActionErrorInternal ActionErrorCode = "internal_api_error"
)

func (c ActionErrorCode) String() string { return string(c) }

// AssignmentError describes why the latest action on an assignment failed.
type AssignmentError struct {
	ActionType  ActionType
	ErrorReason ActionErrorCode
}

// Assignment is the server-persisted record of one learner assigned one course.
type Assignment struct {
	UUID         string
	LearnerEmail string
	LearnerState LearnerState
	ErrorReason  *AssignmentError
	ContentKey   string
}
