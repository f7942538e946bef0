package client

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings configures the enterprise API circuit breaker.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerClient fails fast while the enterprise API is unhealthy. Only transient failures
// count toward tripping; 4xx answers are healthy responses.
type BreakerClient struct {
	next    EnterpriseAPI
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerClient(next EnterpriseAPI, settings BreakerSettings, logger *zap.Logger) *BreakerClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultBreakerSettings().OpenTimeout
	}
	if settings.HalfOpenRequests == 0 {
		settings.HalfOpenRequests = DefaultBreakerSettings().HalfOpenRequests
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "enterprise-api",
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerClient{
		next:    next,
		breaker: breaker,
	}
}

func (c *BreakerClient) State() gobreaker.State {
	return c.breaker.State()
}

func (c *BreakerClient) FetchSubsidyAccessPolicy(ctx context.Context, policyID string) (*domain.Budget, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.next.FetchSubsidyAccessPolicy(ctx, policyID)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return out.(*domain.Budget), nil
}

func (c *BreakerClient) AllocateContentAssignments(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.next.AllocateContentAssignments(ctx, policyID, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return out.(*domain.AllocationResult), nil
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &APIError{
			Message:   "enterprise api unavailable",
			Transient: true,
			Cause:     err,
		}
	}
	return err
}
