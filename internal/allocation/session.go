package allocation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/modal"
	"github.com/kursadbilgin/credit-engine/internal/roster"
)

// ButtonState is the assign button lifecycle.
type ButtonState string

const (
	ButtonDefault  ButtonState = "default"
	ButtonPending  ButtonState = "pending"
	ButtonComplete ButtonState = "complete"
	ButtonError    ButtonState = "error"
)

func (s ButtonState) String() string { return string(s) }

func (s ButtonState) IsValid() bool {
	switch s {
	case ButtonDefault, ButtonPending, ButtonComplete, ButtonError:
		return true
	}
	return false
}

func ParseButtonStateFromString(s string) (ButtonState, error) {
	st := ButtonState(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid button state %q", domain.ErrValidation, s)
	}
	return st, nil
}

// Toast is the success notification payload.
type Toast struct {
	SessionID                     string
	TotalLearnersAllocated        int
	TotalLearnersAlreadyAllocated int
}

// Session is one assignment-modal lifetime for a budget and a piece of content.
type Session struct {
	ID                string
	PolicyID          string
	EnterpriseID      string
	ContentKey        string
	ContentPriceCents int64
	CreatedAt         time.Time

	mu               sync.Mutex
	modalOpen        bool
	state            ButtonState
	errorReason      domain.AllocationErrorReason
	remainingBalance int64
	rawEmails        []string
	verdict          *roster.Verdict
	rosterGen        uint64
	lastRequest      *domain.AllocationRequest
	toast            *Toast
	updatedAt        time.Time

	debouncer *roster.Debouncer
	router    *modal.Router
}

// Snapshot is a consistent, copy-on-read view of a session.
type Snapshot struct {
	ID                    string
	PolicyID              string
	EnterpriseID          string
	ContentKey            string
	ContentPriceCents     int64
	RemainingBalanceCents int64
	ModalOpen             bool
	State                 ButtonState
	ErrorReason           domain.AllocationErrorReason
	Dialog                modal.Dialog
	LearnerEmails         []string
	RosterGeneration      uint64
	Verdict               *roster.Verdict
	Toast                 *Toast
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// snapshotLocked must be called with s.mu held.
func (s *Session) snapshotLocked() *Snapshot {
	emails := make([]string, len(s.rawEmails))
	copy(emails, s.rawEmails)

	snap := &Snapshot{
		ID:                    s.ID,
		PolicyID:              s.PolicyID,
		EnterpriseID:          s.EnterpriseID,
		ContentKey:            s.ContentKey,
		ContentPriceCents:     s.ContentPriceCents,
		RemainingBalanceCents: s.remainingBalance,
		ModalOpen:             s.modalOpen,
		State:                 s.state,
		ErrorReason:           s.errorReason,
		Dialog:                s.router.Open(),
		LearnerEmails:         emails,
		RosterGeneration:      s.rosterGen,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.updatedAt,
	}
	if s.verdict != nil {
		v := *s.verdict
		snap.Verdict = &v
	}
	if s.toast != nil {
		t := *s.toast
		snap.Toast = &t
	}
	return snap
}

// discardLocked drops roster input, pending validation and dialogs. It never touches an
// in-flight submission.
func (s *Session) discardLocked() {
	s.debouncer.Cancel()
	s.rosterGen++
	s.rawEmails = nil
	s.verdict = nil
	s.router.CloseAll()

	if s.state != ButtonPending {
		s.lastRequest = nil
	}
}

// resetLocked returns a reopened session to its initial button state. A pending submission
// keeps its state so its resolution still lands.
func (s *Session) resetLocked() {
	if s.state == ButtonPending {
		return
	}
	s.state = ButtonDefault
	s.errorReason = domain.ReasonNone
	s.lastRequest = nil
	s.toast = nil
}

func submissionKey(policyID string, contentKey string) string {
	return policyID + ":" + contentKey
}
