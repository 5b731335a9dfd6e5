// Package activity writes the user-facing activity feed for committed ledger mutations.
package activity

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/clock"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Feed actions.
const (
	ActionEarn    = "earn"
	ActionRedeem  = "redeem"
	ActionReverse = "reverse"
)

// Feed stores activity entries.
type Feed struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewFeed constructs a Feed backed by db.
func NewFeed(db *gorm.DB, c clock.Clock) *Feed {
	if c == nil {
		c = clock.System{}
	}
	return &Feed{db: db, clock: c}
}

// Append records one entry for accountID. detail may be nil.
func (f *Feed) Append(ctx context.Context, accountID, action, entityID string, detail any) (*models.ActivityLog, error) {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(action) == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("activity account and action are required")
	}
	var raw datatypes.JSON
	if detail != nil {
		encoded, errMarshal := json.Marshal(detail)
		if errMarshal != nil {
			return nil, apperr.ErrInvalidInput.Wrap(errMarshal)
		}
		raw = datatypes.JSON(encoded)
	}

	entry := &models.ActivityLog{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Action:    action,
		EntityID:  entityID,
		Detail:    raw,
		CreatedAt: f.clock.Now(),
	}
	errTx := dbutil.RunInTransaction(ctx, f.db, func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return entry, nil
}

// List returns one page of accountID's feed, newest first, and the total count.
func (f *Feed) List(ctx context.Context, accountID string, page, limit int) ([]models.ActivityLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var total int64
	if errCount := f.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; errCount != nil {
		return nil, 0, apperr.Internal(errCount)
	}
	var rows []models.ActivityLog
	if errFind := f.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, 0, apperr.Internal(errFind)
	}
	return rows, total, nil
}
