package modal

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

func TestDialogFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason domain.AllocationErrorReason
		want   Dialog
		retry  bool
	}{
		{reason: domain.ReasonNone, want: DialogNone},
		{reason: domain.ReasonContentNotInCatalog, want: DialogCatalog},
		{reason: domain.ReasonNotEnoughValueInSubsidy, want: DialogBalance, retry: true},
		{reason: domain.ReasonPolicySpendLimitReached, want: DialogBalance, retry: true},
		{reason: domain.ReasonSystemError, want: DialogSystem, retry: true},
		{reason: "learner_limit_exceeded", want: DialogSystem, retry: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.want)+"/"+tc.reason.String(), func(t *testing.T) {
			t.Parallel()

			got := DialogFor(tc.reason)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if got.AllowsRetry() != tc.retry {
				t.Fatalf("expected retry=%v for %s", tc.retry, got)
			}
		})
	}
}

func TestRouterKeepsOneDialogOpen(t *testing.T) {
	t.Parallel()

	r := NewRouter(nil, nil)

	r.Route(domain.ReasonPolicySpendLimitReached)
	if r.Open() != DialogBalance {
		t.Fatalf("expected balance dialog, got %s", r.Open())
	}

	r.Route(domain.ReasonContentNotInCatalog)
	if r.Open() != DialogCatalog {
		t.Fatalf("expected catalog dialog to replace balance, got %s", r.Open())
	}

	r.Route(domain.ReasonNone)
	if r.Open() != DialogNone {
		t.Fatalf("expected all dialogs closed, got %s", r.Open())
	}
}

func TestRouterRetry(t *testing.T) {
	t.Parallel()

	var retried int
	var r *Router
	r = NewRouter(func(ctx context.Context) error {
		retried++
		if r.Open() != DialogNone {
			t.Fatalf("expected dialogs closed before retry, got %s", r.Open())
		}
		return nil
	}, nil)

	r.Route(domain.ReasonSystemError)
	if err := r.Retry(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected one retry, got %d", retried)
	}
	if r.Open() != DialogNone {
		t.Fatalf("expected dialogs closed, got %s", r.Open())
	}
}

func TestRouterRetryFailureReopens(t *testing.T) {
	t.Parallel()

	var r *Router
	r = NewRouter(func(ctx context.Context) error {
		r.Route(domain.ReasonNotEnoughValueInSubsidy)
		return nil
	}, nil)

	r.Route(domain.ReasonSystemError)
	if err := r.Retry(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Open() != DialogBalance {
		t.Fatalf("expected new failure to open balance dialog, got %s", r.Open())
	}
}

func TestRouterRetryRejectedForCatalog(t *testing.T) {
	t.Parallel()

	called := false
	r := NewRouter(func(ctx context.Context) error {
		called = true
		return nil
	}, nil)

	r.Route(domain.ReasonContentNotInCatalog)
	if err := r.Retry(context.Background()); !errors.Is(err, ErrRetryNotAllowed) {
		t.Fatalf("expected ErrRetryNotAllowed, got %v", err)
	}
	if called {
		t.Fatal("retry must not run for catalog errors")
	}
	if r.Open() != DialogCatalog {
		t.Fatalf("expected catalog dialog to stay open, got %s", r.Open())
	}
}

func TestRouterRetryWithoutDialog(t *testing.T) {
	t.Parallel()

	r := NewRouter(nil, nil)
	if err := r.Retry(context.Background()); !errors.Is(err, ErrNoDialogOpen) {
		t.Fatalf("expected ErrNoDialogOpen, got %v", err)
	}
}

func TestRouterExit(t *testing.T) {
	t.Parallel()

	exited := 0
	r := NewRouter(nil, func() { exited++ })

	r.Route(domain.ReasonContentNotInCatalog)
	if err := r.Exit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exited != 1 {
		t.Fatalf("expected exit handler once, got %d", exited)
	}
	if r.Open() != DialogNone {
		t.Fatalf("expected dialogs closed, got %s", r.Open())
	}

	if err := r.Exit(); !errors.Is(err, ErrNoDialogOpen) {
		t.Fatalf("expected ErrNoDialogOpen, got %v", err)
	}
}
