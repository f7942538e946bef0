package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/credit-engine/internal/observability"
	"github.com/kursadbilgin/credit-engine/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// CacheInvalidator drops cached budget views.
type CacheInvalidator interface {
	InvalidateBudgetCaches(ctx context.Context, policyID string, enterpriseID string) error
}

// InvalidationWorker consumes budget events and drops the cached views they make stale.
type InvalidationWorker struct {
	consumer    queue.Consumer
	caches      CacheInvalidator
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewInvalidationWorker(
	consumer queue.Consumer,
	caches CacheInvalidator,
	concurrency int,
	logger *zap.Logger,
) (*InvalidationWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache invalidator is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InvalidationWorker{
		consumer:    consumer,
		caches:      caches,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

func (w *InvalidationWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the budget events queue until context cancellation.
func (w *InvalidationWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("invalidation worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.BudgetEventsQueue),
			)

			err := w.consumer.Consume(groupCtx, queue.BudgetEventsQueue, w.processMessage)
			if err != nil {
				w.logger.Error("invalidation worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("invalidation worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (w *InvalidationWorker) processMessage(ctx context.Context, msg queue.BudgetEventMessage) error {
	event := msg.ToDomain()
	if err := event.Validate(); err != nil {
		w.logger.Warn("skipping invalid budget event", zap.String("eventId", msg.EventID), zap.Error(err))
		return nil
	}

	if err := w.caches.InvalidateBudgetCaches(ctx, event.PolicyID, event.EnterpriseID); err != nil {
		return fmt.Errorf("failed to invalidate caches for policy %s: %w", event.PolicyID, err)
	}

	w.metrics.IncBudgetEventConsumed(event.Type.String())
	observability.WithContextLogger(w.logger, ctx).Debug("budget caches invalidated",
		zap.String("eventId", event.EventID),
		zap.String("type", event.Type.String()),
		zap.String("policyId", event.PolicyID),
	)
	return nil
}
