package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/credit-engine/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultAttemptListLimit = 50
	maxAttemptListLimit     = 200
)

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.AllocationAttempt) error
	ListByPolicy(ctx context.Context, policyID string, limit int) ([]domain.AllocationAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.AllocationAttempt) error {
	if a == nil {
		return fmt.Errorf("%w: attempt is required", domain.ErrValidation)
	}
	if !a.Outcome.IsValid() {
		return fmt.Errorf("%w: invalid attempt outcome %q", domain.ErrValidation, a.Outcome)
	}

	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*a = *attemptModelToDomain(model)
	return nil
}

// ListByPolicy returns the most recent attempts for a budget, newest first.
func (r *GormAttemptRepo) ListByPolicy(ctx context.Context, policyID string, limit int) ([]domain.AllocationAttempt, error) {
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return nil, fmt.Errorf("%w: policy id is required", domain.ErrValidation)
	}

	var models []AllocationAttemptModel
	err := r.db.WithContext(ctx).
		Where("policy_id = ?", policyID).
		Order("created_at DESC").
		Limit(clampListLimit(limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.AllocationAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}

func clampListLimit(limit int) int {
	if limit <= 0 {
		return defaultAttemptListLimit
	}
	if limit > maxAttemptListLimit {
		return maxAttemptListLimit
	}
	return limit
}
