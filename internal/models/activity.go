package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is a user-facing feed entry written after a committed ledger mutation.
type ActivityLog struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`     // UUID.
	AccountID string         `gorm:"type:varchar(64);not null;index"` // Account the entry belongs to.
	Action    string         `gorm:"type:varchar(64);not null"`       // earn, redeem, reverse.
	EntityID  string         `gorm:"type:varchar(64)"`                // Related transaction or redemption.
	Detail    datatypes.JSON `gorm:"type:jsonb"`                      // Extra fields.
	CreatedAt time.Time      `gorm:"not null;index"`
}
