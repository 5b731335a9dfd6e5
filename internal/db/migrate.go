package db

import (
	"fmt"
	"time"

	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate creates or updates the ledger schema and seeds the audit chain tail.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Wallet{},
		&models.Transaction{},
		&models.Reward{},
		&models.Voucher{},
		&models.Redemption{},
		&models.AuditEntry{},
		&models.AuditChainTail{},
		&models.IdempotencyKey{},
		&models.ActivityLog{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}

	tail := models.AuditChainTail{ID: models.AuditChainTailID, UpdatedAt: time.Now().UTC()}
	if errSeed := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&tail).Error; errSeed != nil {
		return fmt.Errorf("db: seed audit chain tail: %w", errSeed)
	}
	return nil
}
