// Package allocation runs assignment sessions: roster validation, allocation submission and
// the button and dialog state that follows each backend response.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/credit-engine/internal/client"
	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/kursadbilgin/credit-engine/internal/modal"
	"github.com/kursadbilgin/credit-engine/internal/observability"
	"github.com/kursadbilgin/credit-engine/internal/roster"
	"go.uber.org/zap"
)

var (
	ErrSessionClosed  = fmt.Errorf("%w: assignment session is closed", domain.ErrConflict)
	ErrNothingToRetry = fmt.Errorf("%w: no failed allocation to retry", domain.ErrConflict)
	ErrNotAssignable  = fmt.Errorf("%w: budget does not accept new assignments", domain.ErrConflict)
)

// Options tunes session behaviour.
type Options struct {
	DebounceWindow time.Duration
	DisplayLimit   int
}

// StartParams opens a session for one budget and one piece of content.
type StartParams struct {
	PolicyID          string
	EnterpriseID      string
	ContentKey        string
	ContentPriceCents int64
}

func (p StartParams) Validate() error {
	if strings.TrimSpace(p.PolicyID) == "" {
		return fmt.Errorf("%w: policy id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(p.ContentKey) == "" {
		return fmt.Errorf("%w: content key is required", domain.ErrValidation)
	}
	if p.ContentPriceCents < 0 {
		return fmt.Errorf("%w: content price must be non-negative (got %d)", domain.ErrValidation, p.ContentPriceCents)
	}
	return nil
}

type Orchestrator struct {
	allocator Allocator
	budgets   BudgetFetcher
	caches    CacheInvalidator
	notifier  Notifier
	guard     SubmissionGuard
	attempts  AttemptRecorder
	events    EventPublisher
	validator *roster.Validator
	opts      Options
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	newID     func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewOrchestrator(
	allocator Allocator,
	budgets BudgetFetcher,
	caches CacheInvalidator,
	notifier Notifier,
	guard SubmissionGuard,
	attempts AttemptRecorder,
	events EventPublisher,
	validator *roster.Validator,
	opts Options,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if allocator == nil {
		return nil, fmt.Errorf("allocator is required")
	}
	if budgets == nil {
		return nil, fmt.Errorf("budget fetcher is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("roster validator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = roster.DefaultDebounceWindow
	}
	if opts.DisplayLimit <= 0 {
		opts.DisplayLimit = roster.DefaultDisplayLimit
	}

	return &Orchestrator{
		allocator: allocator,
		budgets:   budgets,
		caches:    caches,
		notifier:  notifier,
		guard:     guard,
		attempts:  attempts,
		events:    events,
		validator: validator,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		sessions:  make(map[string]*Session),
	}, nil
}

func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

func (o *Orchestrator) DisplayLimit() int { return o.opts.DisplayLimit }

// Start opens a new session against the current budget balance.
func (o *Orchestrator) Start(ctx context.Context, params StartParams) (*Snapshot, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	budget, err := o.budgets.GetBudget(ctx, params.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}

	enterpriseID := strings.TrimSpace(params.EnterpriseID)
	if enterpriseID == "" {
		enterpriseID = budget.EnterpriseID
	}
	if budget.EnterpriseID != "" && enterpriseID != budget.EnterpriseID {
		return nil, fmt.Errorf("%w: budget %s does not belong to enterprise %s", domain.ErrValidation, params.PolicyID, enterpriseID)
	}

	now := o.now().UTC()
	if !budget.CanAssign(now) {
		return nil, fmt.Errorf("%w: budget %s is %s", ErrNotAssignable, params.PolicyID, budget.Status(now))
	}

	sess := &Session{
		ID:                o.newID(),
		PolicyID:          params.PolicyID,
		EnterpriseID:      enterpriseID,
		ContentKey:        strings.TrimSpace(params.ContentKey),
		ContentPriceCents: params.ContentPriceCents,
		CreatedAt:         now,
		modalOpen:         true,
		state:             ButtonDefault,
		remainingBalance:  budget.Aggregates.SpendAvailableUsdCents,
		updatedAt:         now,
		debouncer:         roster.NewDebouncer(o.opts.DebounceWindow),
	}
	sess.router = modal.NewRouter(
		func(ctx context.Context) error {
			_, err := o.retry(ctx, sess)
			return err
		},
		func() { o.close(sess) },
	)

	o.mu.Lock()
	o.sessions[sess.ID] = sess
	o.mu.Unlock()

	observability.WithContextLogger(o.logger, ctx).Info("assignment session started",
		zap.String("sessionId", sess.ID),
		zap.String("policyId", sess.PolicyID),
		zap.String("contentKey", sess.ContentKey),
		zap.Int64("remainingBalanceCents", sess.remainingBalance),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

func (o *Orchestrator) Get(id string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// UpdateRoster validates emails immediately, superseding any debounced validation.
func (o *Orchestrator) UpdateRoster(ctx context.Context, id string, emails []string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.modalOpen {
		return nil, ErrSessionClosed
	}

	sess.debouncer.Cancel()
	sess.rosterGen++
	sess.rawEmails = copyEmails(emails)
	o.applyVerdictLocked(sess)

	return sess.snapshotLocked(), nil
}

// UpdateRosterDebounced records emails and schedules validation after the debounce window.
// It returns the generation that the eventual verdict will carry.
func (o *Orchestrator) UpdateRosterDebounced(ctx context.Context, id string, emails []string) (uint64, error) {
	sess, err := o.session(id)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.modalOpen {
		return 0, ErrSessionClosed
	}

	sess.rosterGen++
	gen := sess.rosterGen
	sess.rawEmails = copyEmails(emails)
	sess.updatedAt = o.now().UTC()

	sess.debouncer.Trigger(func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if sess.rosterGen != gen || !sess.modalOpen {
			o.logger.Debug("dropping superseded roster validation",
				zap.String("sessionId", sess.ID),
				zap.Uint64("generation", gen),
				zap.Uint64("current", sess.rosterGen),
			)
			return
		}
		o.applyVerdictLocked(sess)
	})

	return gen, nil
}

func (o *Orchestrator) applyVerdictLocked(sess *Session) {
	verdict := o.validator.Validate(roster.Input{
		LearnerEmails:    sess.rawEmails,
		RemainingBalance: sess.remainingBalance,
		ContentPrice:     sess.ContentPriceCents,
	})
	sess.verdict = &verdict
	sess.updatedAt = o.now().UTC()

	result := "valid"
	switch {
	case verdict.ValidationError != nil:
		result = verdict.ValidationError.Reason.String()
	case !verdict.HasEnoughBalanceForAssignment:
		result = "insufficient_balance"
	}
	o.metrics.IncRosterValidation(result)
}

// Allocate submits the validated roster. The backend call is detached from ctx so a
// disconnecting caller never cancels a submitted allocation.
func (o *Orchestrator) Allocate(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if !sess.modalOpen {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if sess.state == ButtonPending {
		sess.mu.Unlock()
		o.metrics.IncAllocation("rejected")
		return nil, domain.ErrSubmissionInFlight
	}
	if err := verdictError(sess.verdict); err != nil {
		sess.mu.Unlock()
		o.metrics.IncAllocation("rejected")
		return nil, err
	}

	req := domain.AllocationRequest{
		ContentKey:        sess.ContentKey,
		ContentPriceCents: sess.ContentPriceCents,
		LearnerEmails:     copyEmails(sess.verdict.LearnerEmails),
	}
	if err := req.Validate(); err != nil {
		sess.mu.Unlock()
		return nil, err
	}

	restore := o.markPendingLocked(sess, &req)
	sess.mu.Unlock()

	return o.submit(ctx, sess, req, false, restore)
}

// Retry replays the last failed request unchanged.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}
	return o.retry(ctx, sess)
}

func (o *Orchestrator) retry(ctx context.Context, sess *Session) (*Snapshot, error) {
	sess.mu.Lock()
	if !sess.modalOpen {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if sess.state == ButtonPending {
		sess.mu.Unlock()
		o.metrics.IncAllocation("rejected")
		return nil, domain.ErrSubmissionInFlight
	}
	if sess.state != ButtonError || sess.lastRequest == nil {
		sess.mu.Unlock()
		return nil, ErrNothingToRetry
	}

	req := sess.lastRequest.Clone()
	restore := o.markPendingLocked(sess, &req)
	sess.mu.Unlock()

	return o.submit(ctx, sess, req, true, restore)
}

// markPendingLocked moves the session to pending and returns a func that undoes it.
func (o *Orchestrator) markPendingLocked(sess *Session, req *domain.AllocationRequest) func() {
	prevState, prevReason, prevRequest := sess.state, sess.errorReason, sess.lastRequest

	sess.state = ButtonPending
	sess.errorReason = domain.ReasonNone
	sess.lastRequest = req
	sess.toast = nil
	sess.router.Route(domain.ReasonNone)
	sess.updatedAt = o.now().UTC()

	return func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		sess.state = prevState
		sess.errorReason = prevReason
		sess.lastRequest = prevRequest
		if sess.modalOpen {
			sess.router.Route(prevReason)
		}
	}
}

func (o *Orchestrator) submit(ctx context.Context, sess *Session, req domain.AllocationRequest, isRetry bool, restore func()) (*Snapshot, error) {
	callCtx := context.WithoutCancel(ctx)
	logger := observability.WithContextLogger(o.logger, ctx).With(
		zap.String("sessionId", sess.ID),
		zap.String("policyId", sess.PolicyID),
		zap.String("contentKey", req.ContentKey),
		zap.Int("learnerCount", len(req.LearnerEmails)),
		zap.Bool("retry", isRetry),
	)

	release, err := o.acquire(callCtx, submissionKey(sess.PolicyID, req.ContentKey))
	if err != nil {
		restore()
		o.metrics.IncAllocation("rejected")
		logger.Warn("allocation submission rejected by guard", zap.Error(err))
		if errors.Is(err, domain.ErrSubmissionInFlight) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire submission lock: %w", err)
	}

	o.metrics.IncSubmissionsInFlight()
	start := o.now()
	result, callErr := o.allocator.AllocateContentAssignments(callCtx, sess.PolicyID, req)
	elapsed := o.now().Sub(start)
	o.metrics.ObserveAllocationDuration(elapsed)
	o.metrics.DecSubmissionsInFlight()
	release()

	attempt := &domain.AllocationAttempt{
		ID:                o.newID(),
		SessionID:         sess.ID,
		PolicyID:          sess.PolicyID,
		EnterpriseID:      sess.EnterpriseID,
		ContentKey:        req.ContentKey,
		ContentPriceCents: req.ContentPriceCents,
		LearnerCount:      len(req.LearnerEmails),
		Retry:             isRetry,
		CreatedAt:         o.now().UTC(),
	}

	if callErr != nil {
		reason := client.ReasonOf(callErr)
		attempt.ErrorReason = reason
		attempt.Outcome = domain.AttemptOutcomeSystemError
		if reason != domain.ReasonSystemError {
			attempt.Outcome = domain.AttemptOutcomeUnprocessable
		}
		if code := client.StatusCodeOf(callErr); code > 0 {
			attempt.StatusCode = &code
		}
		msg := callErr.Error()
		attempt.Error = &msg

		logger.Error("allocation failed",
			zap.String("errorReason", reason.String()),
			zap.Int("statusCode", client.StatusCodeOf(callErr)),
			zap.Bool("transient", client.IsTransient(callErr)),
			zap.Duration("elapsed", elapsed),
			zap.Error(callErr),
		)
		o.metrics.IncAllocation(attempt.Outcome.String())
		o.metrics.IncAllocationError(reason.String())
		o.recordAttempt(callCtx, logger, attempt)

		sess.mu.Lock()
		defer sess.mu.Unlock()

		sess.state = ButtonError
		sess.errorReason = reason
		sess.updatedAt = o.now().UTC()
		if sess.modalOpen {
			sess.router.Route(reason)
		}
		return sess.snapshotLocked(), nil
	}

	toast := Toast{
		SessionID:                     sess.ID,
		TotalLearnersAllocated:        result.TotalLearnersAllocated(),
		TotalLearnersAlreadyAllocated: result.TotalLearnersAlreadyAllocated(),
	}
	attempt.Outcome = domain.AttemptOutcomeSuccess
	attempt.TotalAllocated = toast.TotalLearnersAllocated
	attempt.TotalAlreadyAllocated = toast.TotalLearnersAlreadyAllocated

	logger.Info("allocation succeeded",
		zap.Int("totalLearnersAllocated", toast.TotalLearnersAllocated),
		zap.Int("totalLearnersAlreadyAllocated", toast.TotalLearnersAlreadyAllocated),
		zap.Duration("elapsed", elapsed),
	)
	o.metrics.IncAllocation(attempt.Outcome.String())
	o.recordAttempt(callCtx, logger, attempt)

	sess.mu.Lock()
	sess.state = ButtonComplete
	sess.errorReason = domain.ReasonNone
	sess.toast = &toast
	sess.modalOpen = false
	sess.discardLocked()
	sess.updatedAt = o.now().UTC()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	if o.caches != nil {
		if err := o.caches.InvalidateBudgetCaches(callCtx, sess.PolicyID, sess.EnterpriseID); err != nil {
			logger.Warn("budget cache invalidation failed", zap.Error(err))
		}
	}
	o.notifier.AllocationSucceeded(callCtx, toast)
	o.publish(callCtx, logger, domain.BudgetEvent{
		EventID:          o.newID(),
		Type:             domain.BudgetEventAllocated,
		PolicyID:         sess.PolicyID,
		EnterpriseID:     sess.EnterpriseID,
		ContentKey:       req.ContentKey,
		Allocated:        toast.TotalLearnersAllocated,
		AlreadyAllocated: toast.TotalLearnersAlreadyAllocated,
		OccurredAt:       o.now().UTC(),
	})

	return snap, nil
}

func (o *Orchestrator) acquire(ctx context.Context, key string) (func(), error) {
	if o.guard == nil {
		return func() {}, nil
	}
	release, err := o.guard.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	if release == nil {
		release = func() {}
	}
	return release, nil
}

func (o *Orchestrator) recordAttempt(ctx context.Context, logger *zap.Logger, attempt *domain.AllocationAttempt) {
	if o.attempts == nil {
		return
	}
	if err := o.attempts.Create(ctx, attempt); err != nil {
		logger.Warn("failed to record allocation attempt", zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, event domain.BudgetEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishBudgetEvent(ctx, event); err != nil {
		logger.Warn("failed to publish budget event", zap.String("eventId", event.EventID), zap.Error(err))
	}
}

// Close discards the session's roster and dialogs. A submitted allocation keeps running
// and its result is still recorded on the session.
func (o *Orchestrator) Close(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}
	return o.close(sess), nil
}

func (o *Orchestrator) close(sess *Session) *Snapshot {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.modalOpen = false
	sess.discardLocked()
	sess.updatedAt = o.now().UTC()

	o.logger.Debug("assignment session closed",
		zap.String("sessionId", sess.ID),
		zap.String("state", sess.state.String()),
	)
	return sess.snapshotLocked()
}

// Reopen shows the session again with a freshly fetched balance. A roster still on the
// session is revalidated against that balance.
func (o *Orchestrator) Reopen(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}

	budget, err := o.budgets.GetBudget(ctx, sess.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.modalOpen {
		sess.modalOpen = true
		sess.resetLocked()
	}
	sess.remainingBalance = budget.Aggregates.SpendAvailableUsdCents
	sess.updatedAt = o.now().UTC()

	if len(sess.rawEmails) > 0 {
		sess.debouncer.Cancel()
		sess.rosterGen++
		o.applyVerdictLocked(sess)
	}

	return sess.snapshotLocked(), nil
}

// ErrorDialogRetry is the retry button of the open error dialog.
func (o *Orchestrator) ErrorDialogRetry(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}

	if err := sess.router.Retry(ctx); err != nil {
		return nil, err
	}
	return o.Get(id)
}

// ErrorDialogExit is the exit button of the open error dialog. It closes the session.
func (o *Orchestrator) ErrorDialogExit(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := o.session(id)
	if err != nil {
		return nil, err
	}

	if err := sess.router.Exit(); err != nil {
		return nil, err
	}
	return o.Get(id)
}

// Prune forgets closed sessions idle for longer than maxIdle. Pending sessions are kept.
func (o *Orchestrator) Prune(maxIdle time.Duration) int {
	cutoff := o.now().UTC().Add(-maxIdle)

	o.mu.Lock()
	defer o.mu.Unlock()

	pruned := 0
	for id, sess := range o.sessions {
		sess.mu.Lock()
		idle := !sess.modalOpen && sess.state != ButtonPending && sess.updatedAt.Before(cutoff)
		sess.mu.Unlock()

		if idle {
			delete(o.sessions, id)
			pruned++
		}
	}
	return pruned
}

func (o *Orchestrator) session(id string) (*Session, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	o.mu.RLock()
	sess, ok := o.sessions[trimmed]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: assignment session %s", domain.ErrNotFound, trimmed)
	}
	return sess, nil
}

func verdictError(v *roster.Verdict) error {
	switch {
	case v == nil:
		return fmt.Errorf("%w: learner emails have not been validated", domain.ErrValidation)
	case v.ValidationError != nil:
		return fmt.Errorf("%w: %s: %s", domain.ErrValidation, v.ValidationError.Reason, v.ValidationError.Message)
	case !v.HasEnoughBalanceForAssignment:
		return fmt.Errorf("%w: total assignment cost %d exceeds available balance", domain.ErrValidation, v.TotalAssignmentCost)
	}
	return nil
}

func copyEmails(emails []string) []string {
	out := make([]string, len(emails))
	copy(out, emails)
	return out
}
