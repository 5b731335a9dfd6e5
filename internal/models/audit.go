package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry is one link of the global hash chain.
type AuditEntry struct {
	ID       string `gorm:"type:varchar(36);primaryKey"` // UUID.
	Sequence uint64 `gorm:"not null;uniqueIndex"`        // Monotonic position in the chain, starting at 1.

	ActorID        string         `gorm:"type:varchar(64);not null;index"` // Who acted.
	ActionType     string         `gorm:"type:varchar(64);not null;index"` // What was done.
	EntityID       string         `gorm:"type:varchar(64);index"`          // What it was done to.
	BeforeSnapshot datatypes.JSON `gorm:"type:jsonb"`                      // State before the action.
	AfterSnapshot  datatypes.JSON `gorm:"type:jsonb"`                      // State after the action.
	Source         string         `gorm:"type:varchar(64)"`                // Calling surface.
	Timestamp      time.Time      `gorm:"not null;index"`                  // Server time of append.

	Hash         string `gorm:"type:varchar(64);not null;uniqueIndex"` // Hex digest of this entry.
	PreviousHash string `gorm:"type:varchar(64);not null;uniqueIndex"` // Digest of the preceding entry; empty for genesis.
}

// AuditChainTailID is the primary key of the single chain tail row.
const AuditChainTailID = 1

// AuditChainTail points at the newest chain entry and is updated in the same transaction as each append.
type AuditChainTail struct {
	ID        uint      `gorm:"primaryKey"`                // Always AuditChainTailID.
	Sequence  uint64    `gorm:"not null;default:0"`        // Sequence of the newest entry.
	Hash      string    `gorm:"type:varchar(64);not null"` // Hash of the newest entry.
	UpdatedAt time.Time `gorm:"not null"`                  // Last append time.
}
