package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/credit-engine/internal/domain"
)

const defaultEnterpriseTimeout = 10 * time.Second

// EnterpriseClient is the resty-backed EnterpriseAPI.
type EnterpriseClient struct {
	client  *resty.Client
	baseURL string
}

func NewEnterpriseClient(baseURL string, timeout time.Duration) (*EnterpriseClient, error) {
	client := resty.New()
	if timeout <= 0 {
		timeout = defaultEnterpriseTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return NewEnterpriseClientWithClient(baseURL, client)
}

func NewEnterpriseClientWithClient(baseURL string, client *resty.Client) (*EnterpriseClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("enterprise api url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid enterprise api url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultEnterpriseTimeout)
	}
	// Retries are user-initiated only.
	client.SetRetryCount(0)

	return &EnterpriseClient{
		client:  client,
		baseURL: trimmed,
	}, nil
}

func (c *EnterpriseClient) FetchSubsidyAccessPolicy(ctx context.Context, policyID string) (*domain.Budget, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("enterprise client is not initialized")
	}
	if strings.TrimSpace(policyID) == "" {
		return nil, fmt.Errorf("%w: policy id is required", domain.ErrValidation)
	}

	var body policyResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&body).
		Get(c.policyURL(policyID))
	if err != nil {
		return nil, requestError(err)
	}

	statusCode := response.StatusCode()
	switch {
	case statusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: subsidy access policy %s", domain.ErrNotFound, policyID)
	case statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices:
		return nil, statusError(statusCode, strings.TrimSpace(response.String()))
	}

	return body.toDomain(), nil
}

func (c *EnterpriseClient) AllocateContentAssignments(ctx context.Context, policyID string, req domain.AllocationRequest) (*domain.AllocationResult, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("enterprise client is not initialized")
	}
	if strings.TrimSpace(policyID) == "" {
		return nil, fmt.Errorf("%w: policy id is required", domain.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid allocation request: %w", err)
	}

	var body allocateResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(allocateRequest{
			LearnerEmails:     req.LearnerEmails,
			ContentKey:        req.ContentKey,
			ContentPriceCents: req.ContentPriceCents,
		}).
		SetResult(&body).
		Post(c.allocateURL(policyID))
	if err != nil {
		return nil, requestError(err)
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return body.toDomain(), nil
	case statusCode == http.StatusUnprocessableEntity:
		return nil, &APIError{
			StatusCode: statusCode,
			Reason:     firstReason(response.Body()),
			Message:    errorMessage(statusCode, responseBody),
		}
	}

	return nil, statusError(statusCode, responseBody)
}

func (c *EnterpriseClient) policyURL(policyID string) string {
	return fmt.Sprintf("%s/api/v1/subsidy-access-policies/%s/", c.baseURL, url.PathEscape(policyID))
}

func (c *EnterpriseClient) allocateURL(policyID string) string {
	return fmt.Sprintf("%s/api/v1/policy-allocation/%s/allocate/", c.baseURL, url.PathEscape(policyID))
}

// firstReason reads the reason of the first element of a 422 body. Unparseable bodies
// yield ReasonNone, which callers treat as a system error.
func firstReason(body []byte) domain.AllocationErrorReason {
	var details []unprocessableDetail
	if err := json.Unmarshal(body, &details); err != nil || len(details) == 0 {
		return domain.ReasonNone
	}
	return domain.ParseAllocationErrorReason(details[0].Reason)
}

func requestError(err error) error {
	return &APIError{
		Message:   "enterprise api request failed",
		Transient: !errors.Is(err, context.Canceled),
		Cause:     err,
	}
}

func statusError(statusCode int, body string) error {
	return &APIError{
		StatusCode: statusCode,
		Message:    errorMessage(statusCode, body),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func errorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("enterprise api returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
