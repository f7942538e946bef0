package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addAllocationAttemptsReasonIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_allocation_attempts_reason_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_allocation_attempts_failed ON allocation_attempts (policy_id, error_reason) WHERE outcome <> 'success'`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_allocation_attempts_failed`).Error
		},
	}
}
