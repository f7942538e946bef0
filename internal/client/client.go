// Package client talks to the enterprise access REST API.
package client

import (
	"context"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

// EnterpriseAPI is the outbound port for budget reads and allocations.
type EnterpriseAPI interface {
	FetchSubsidyAccessPolicy(ctx context.Context, policyID string) (*domain.Budget, error)
	AllocateContentAssignments(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error)
}
