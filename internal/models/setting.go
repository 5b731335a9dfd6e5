package models

import (
	"encoding/json"
	"time"
)

// Setting stores a runtime-tunable ledger threshold as a JSON value.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Threshold key.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
