// Package roster validates learner email rosters against a budget balance and content price.
package roster

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kursadbilgin/credit-engine/internal/balance"
	"github.com/kursadbilgin/credit-engine/internal/domain"
)

const DefaultMaxEmails = 1000

// ValidationReason is the machine-readable cause of a blocking roster error.
type ValidationReason string

const (
	ReasonEmpty          ValidationReason = "empty"
	ReasonInvalidEmail   ValidationReason = "invalid_email"
	ReasonDuplicateEmail ValidationReason = "duplicate_email"
	ReasonOverMax        ValidationReason = "over_max"
)

func (r ValidationReason) String() string { return string(r) }

// DuplicatePolicy controls whether repeated addresses block allocation.
type DuplicatePolicy string

const (
	DuplicatePolicyAnnotate DuplicatePolicy = "annotate"
	DuplicatePolicyBlock    DuplicatePolicy = "block"
)

func (p DuplicatePolicy) String() string { return string(p) }

func (p DuplicatePolicy) IsValid() bool {
	switch p {
	case DuplicatePolicyAnnotate, DuplicatePolicyBlock:
		return true
	}
	return false
}

func ParseDuplicatePolicyFromString(s string) (DuplicatePolicy, error) {
	p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: invalid duplicate email policy %q", domain.ErrValidation, s)
	}
	return p, nil
}

// ValidationError is a blocking roster problem.
type ValidationError struct {
	Reason  ValidationReason
	Message string
	Emails  []string
}

// DuplicateWarning flags repeated addresses without blocking allocation.
type DuplicateWarning struct {
	Emails  []string
	Message string
}

// Input is everything the validator needs. Amounts are in cents.
type Input struct {
	LearnerEmails    []string
	RemainingBalance int64
	ContentPrice     int64
}

// Verdict is derived from an Input and never persisted.
type Verdict struct {
	IsValidInput                    bool
	CanAllocate                     bool
	LearnerEmails                   []string
	LearnerEmailsCount              int
	TotalAssignmentCost             int64
	HasEnoughBalanceForAssignment   bool
	RemainingBalanceAfterAssignment int64
	ValidationError                 *ValidationError
	DuplicateWarning                *DuplicateWarning
}

var emailValidate = validator.New()

// Validator is a pure roster reducer configured with a duplicate policy and size cap.
type Validator struct {
	duplicatePolicy DuplicatePolicy
	maxEmails       int
}

func NewValidator(duplicatePolicy DuplicatePolicy, maxEmails int) *Validator {
	if !duplicatePolicy.IsValid() {
		duplicatePolicy = DuplicatePolicyAnnotate
	}
	if maxEmails <= 0 {
		maxEmails = DefaultMaxEmails
	}

	return &Validator{
		duplicatePolicy: duplicatePolicy,
		maxEmails:       maxEmails,
	}
}

func (v *Validator) DuplicatePolicy() DuplicatePolicy { return v.duplicatePolicy }

func (v *Validator) MaxEmails() int { return v.maxEmails }

// Validate computes the verdict for in. It has no side effects.
func (v *Validator) Validate(in Input) Verdict {
	emails, duplicates := Normalize(in.LearnerEmails)

	invalid := make([]string, 0)
	validCount := 0
	for _, email := range emails {
		if IsValidEmail(email) {
			validCount++
			continue
		}
		invalid = append(invalid, email)
	}

	total := balance.TotalAssignmentCost(in.ContentPrice, validCount)
	remaining := balance.RemainingBalance(in.RemainingBalance, total)

	verdict := Verdict{
		LearnerEmails:                   emails,
		LearnerEmailsCount:              len(emails),
		TotalAssignmentCost:             total,
		HasEnoughBalanceForAssignment:   remaining >= 0,
		RemainingBalanceAfterAssignment: remaining,
	}

	if len(duplicates) > 0 {
		verdict.DuplicateWarning = &DuplicateWarning{
			Emails:  duplicates,
			Message: fmt.Sprintf("duplicate emails were removed: %s", strings.Join(duplicates, ", ")),
		}
	}

	verdict.ValidationError = v.blockingError(emails, invalid, duplicates)
	verdict.IsValidInput = verdict.ValidationError == nil
	verdict.CanAllocate = verdict.IsValidInput && verdict.HasEnoughBalanceForAssignment

	return verdict
}

func (v *Validator) blockingError(emails, invalid, duplicates []string) *ValidationError {
	switch {
	case len(emails) == 0:
		return &ValidationError{
			Reason:  ReasonEmpty,
			Message: "at least one learner email is required",
		}
	case len(invalid) > 0:
		return &ValidationError{
			Reason:  ReasonInvalidEmail,
			Message: invalidEmailMessage(invalid),
			Emails:  invalid,
		}
	case len(duplicates) > 0 && v.duplicatePolicy == DuplicatePolicyBlock:
		return &ValidationError{
			Reason:  ReasonDuplicateEmail,
			Message: fmt.Sprintf("remove duplicate emails: %s", strings.Join(duplicates, ", ")),
			Emails:  duplicates,
		}
	case len(emails) > v.maxEmails:
		return &ValidationError{
			Reason:  ReasonOverMax,
			Message: fmt.Sprintf("at most %d learner emails can be assigned at once (got %d)", v.maxEmails, len(emails)),
		}
	}
	return nil
}

func invalidEmailMessage(invalid []string) string {
	if len(invalid) == 1 {
		return fmt.Sprintf("%s is not a valid email", invalid[0])
	}
	return fmt.Sprintf("the following emails are not valid: %s", strings.Join(invalid, ", "))
}

// IsValidEmail reports whether s is a syntactically valid email address.
func IsValidEmail(s string) bool {
	return emailValidate.Var(s, "required,email") == nil
}

// Normalize trims, lowercases and deduplicates emails, preserving first-seen order.
// The second result lists each address that appeared more than once.
func Normalize(emails []string) ([]string, []string) {
	seen := make(map[string]int, len(emails))
	distinct := make([]string, 0, len(emails))
	duplicates := make([]string, 0)

	for _, raw := range emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" {
			continue
		}

		seen[email]++
		switch seen[email] {
		case 1:
			distinct = append(distinct, email)
		case 2:
			duplicates = append(duplicates, email)
		}
	}

	return distinct, duplicates
}
