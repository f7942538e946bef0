// Package modal decides which allocation error dialog is open and dispatches its retry and
// exit actions.
package modal

import (
	"context"
	"fmt"
	"sync"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

// Dialog is the closed set of allocation error dialogs.
type Dialog string

const (
	DialogNone    Dialog = "none"
	DialogCatalog Dialog = "catalog"
	DialogBalance Dialog = "balance"
	DialogSystem  Dialog = "system"
)

func (d Dialog) String() string { return string(d) }

// AllowsRetry reports whether the dialog offers a retry action.
func (d Dialog) AllowsRetry() bool {
	return d == DialogBalance || d == DialogSystem
}

var (
	ErrNoDialogOpen    = fmt.Errorf("%w: no error dialog is open", domain.ErrConflict)
	ErrRetryNotAllowed = fmt.Errorf("%w: error dialog does not allow retry", domain.ErrConflict)
)

// DialogFor selects the dialog for an allocation error reason.
func DialogFor(reason domain.AllocationErrorReason) Dialog {
	switch {
	case reason == domain.ReasonNone:
		return DialogNone
	case reason == domain.ReasonContentNotInCatalog:
		return DialogCatalog
	case reason.IsFunding():
		return DialogBalance
	}
	return DialogSystem
}

// Router keeps at most one error dialog open.
type Router struct {
	mu    sync.Mutex
	open  Dialog
	retry func(ctx context.Context) error
	exit  func()
}

// NewRouter wires the dialog actions. retry replays the last allocation; exit closes the
// surrounding assignment session.
func NewRouter(retry func(ctx context.Context) error, exit func()) *Router {
	return &Router{
		open:  DialogNone,
		retry: retry,
		exit:  exit,
	}
}

// Route closes every dialog and opens the one matching reason, if any.
func (r *Router) Route(reason domain.AllocationErrorReason) Dialog {
	d := DialogFor(reason)

	r.mu.Lock()
	r.open = d
	r.mu.Unlock()

	return d
}

// Open returns the dialog currently shown.
func (r *Router) Open() Dialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// CloseAll hides every dialog.
func (r *Router) CloseAll() {
	r.mu.Lock()
	r.open = DialogNone
	r.mu.Unlock()
}

// Retry closes the dialogs and replays the allocation. Catalog errors cannot be retried.
// A failed replay may route a new dialog open before Retry returns.
func (r *Router) Retry(ctx context.Context) error {
	r.mu.Lock()
	open := r.open
	if open == DialogNone {
		r.mu.Unlock()
		return ErrNoDialogOpen
	}
	if !open.AllowsRetry() {
		r.mu.Unlock()
		return ErrRetryNotAllowed
	}
	r.open = DialogNone
	r.mu.Unlock()

	if r.retry == nil {
		return nil
	}
	return r.retry(ctx)
}

// Exit closes the dialogs and invokes the session close handler.
func (r *Router) Exit() error {
	r.mu.Lock()
	open := r.open
	r.open = DialogNone
	r.mu.Unlock()

	if open == DialogNone {
		return ErrNoDialogOpen
	}
	if r.exit != nil {
		r.exit()
	}
	return nil
}
