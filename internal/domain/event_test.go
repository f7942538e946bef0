package domain

import (
	"errors"
	"testing"
	"time"
)

func TestBudgetEventValidate(t *testing.T) {
	t.Parallel()

	valid := BudgetEvent{
		EventID:    "evt-1",
		Type:       BudgetEventAllocated,
		PolicyID:   "policy-1",
		OccurredAt: time.Unix(1_700_000_000, 0),
	}

	testCases := []struct {
		name    string
		mutate  func(e *BudgetEvent)
		wantErr bool
	}{
		{name: "valid", mutate: func(e *BudgetEvent) {}},
		{name: "missing event id", mutate: func(e *BudgetEvent) { e.EventID = " " }, wantErr: true},
		{name: "unknown type", mutate: func(e *BudgetEvent) { e.Type = "refunded" }, wantErr: true},
		{name: "missing policy", mutate: func(e *BudgetEvent) { e.PolicyID = "" }, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := valid
			tc.mutate(&e)

			err := e.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestParseBudgetEventTypeFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseBudgetEventTypeFromString(" Cancelled ")
	if err != nil {
		t.Fatalf("ParseBudgetEventTypeFromString() error = %v", err)
	}
	if got != BudgetEventCancelled {
		t.Fatalf("type = %s, want cancelled", got)
	}

	if _, err := ParseBudgetEventTypeFromString("spent"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseBudgetEventTypeFromString() error = %v, want ErrValidation", err)
	}
}

func TestParseAttemptOutcomeFromString(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"success", "UNPROCESSABLE", " system_error "} {
		if _, err := ParseAttemptOutcomeFromString(raw); err != nil {
			t.Fatalf("ParseAttemptOutcomeFromString(%q) error = %v", raw, err)
		}
	}
	if _, err := ParseAttemptOutcomeFromString("timeout"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseAttemptOutcomeFromString() error = %v, want ErrValidation", err)
	}
}
