package models

import (
	"time"

	"gorm.io/datatypes"
)

// IdempotencyKey remembers the result of one logical earn or redeem request.
type IdempotencyKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID   string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_idempotency_scope,priority:1"`  // Caller account.
	Operation   string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_idempotency_scope,priority:2"`  // earn or redeem.
	Key         string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_idempotency_scope,priority:3"` // Client supplied key.
	RequestHash string         `gorm:"type:varchar(64);not null"`                                               // Digest of the request parameters.
	Response    datatypes.JSON `gorm:"type:jsonb"`                                                              // Stored result.

	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"` // Eligible for purge after this time.
}
