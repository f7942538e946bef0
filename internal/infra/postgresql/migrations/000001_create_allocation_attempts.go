package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/credit-engine/internal/repository"
	"gorm.io/gorm"
)

func createAllocationAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_allocation_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AllocationAttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_allocation_attempts_policy_created ON allocation_attempts (policy_id, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_allocation_attempts_session ON allocation_attempts (session_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AllocationAttemptModel{})
		},
	}
}
