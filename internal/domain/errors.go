package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited")

	// ErrSubmissionInFlight is returned when an allocation is submitted while a
	// previous submission for the same session or content is still pending.
	ErrSubmissionInFlight = fmt.Errorf("%w: allocation submission already in flight", ErrConflict)
)
