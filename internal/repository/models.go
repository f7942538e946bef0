package repository

import (
	"time"

	"github.com/kursadbilgin/credit-engine/internal/domain"
)

// AllocationAttemptModel is the persistence model for the allocation_attempts table.
type AllocationAttemptModel struct {
	ID                    string                       `gorm:"type:uuid;primaryKey"`
	SessionID             string                       `gorm:"type:uuid;not null"`
	PolicyID              string                       `gorm:"type:varchar(64);not null"`
	EnterpriseID          string                       `gorm:"type:varchar(64);not null"`
	ContentKey            string                       `gorm:"type:varchar(255);not null"`
	ContentPriceCents     int64                        `gorm:"not null"`
	LearnerCount          int                          `gorm:"not null"`
	Outcome               domain.AttemptOutcome        `gorm:"type:varchar(20);not null"`
	ErrorReason           domain.AllocationErrorReason `gorm:"type:varchar(64)"`
	StatusCode            *int                         `gorm:"type:int"`
	Error                 *string                      `gorm:"type:text"`
	TotalAllocated        int                          `gorm:"not null;default:0"`
	TotalAlreadyAllocated int                          `gorm:"not null;default:0"`
	Retry                 bool                         `gorm:"not null;default:false"`
	CreatedAt             time.Time
}

func (AllocationAttemptModel) TableName() string {
	return "allocation_attempts"
}

func attemptModelFromDomain(a *domain.AllocationAttempt) *AllocationAttemptModel {
	if a == nil {
		return nil
	}

	return &AllocationAttemptModel{
		ID:                    a.ID,
		SessionID:             a.SessionID,
		PolicyID:              a.PolicyID,
		EnterpriseID:          a.EnterpriseID,
		ContentKey:            a.ContentKey,
		ContentPriceCents:     a.ContentPriceCents,
		LearnerCount:          a.LearnerCount,
		Outcome:               a.Outcome,
		ErrorReason:           a.ErrorReason,
		StatusCode:            a.StatusCode,
		Error:                 a.Error,
		TotalAllocated:        a.TotalAllocated,
		TotalAlreadyAllocated: a.TotalAlreadyAllocated,
		Retry:                 a.Retry,
		CreatedAt:             a.CreatedAt,
	}
}

func attemptModelToDomain(m *AllocationAttemptModel) *domain.AllocationAttempt {
	if m == nil {
		return nil
	}

	return &domain.AllocationAttempt{
		ID:                    m.ID,
		SessionID:             m.SessionID,
		PolicyID:              m.PolicyID,
		EnterpriseID:          m.EnterpriseID,
		ContentKey:            m.ContentKey,
		ContentPriceCents:     m.ContentPriceCents,
		LearnerCount:          m.LearnerCount,
		Outcome:               m.Outcome,
		ErrorReason:           m.ErrorReason,
		StatusCode:            m.StatusCode,
		Error:                 m.Error,
		TotalAllocated:        m.TotalAllocated,
		TotalAlreadyAllocated: m.TotalAlreadyAllocated,
		Retry:                 m.Retry,
		CreatedAt:             m.CreatedAt,
	}
}
