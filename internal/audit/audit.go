// Package audit maintains the global hash-chained audit log.
//
// Appends lock the single chain tail row, link the new entry to the tail hash, and
// advance the tail in the same transaction. Hash and previous hash carry unique
// indexes, so a second entry claiming the same predecessor cannot be stored.
package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/clock"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Action types written by the ledger.
const (
	ActionEarn             = "coins.earn"
	ActionEarnRejected     = "coins.earn_rejected"
	ActionRedeem           = "coins.redeem"
	ActionRedeemRejected   = "coins.redeem_rejected"
	ActionReverse          = "transaction.reverse"
	ActionReverseRejected  = "transaction.reverse_rejected"
	ActionRewardCreate     = "reward.create"
	ActionRewardVouchers   = "reward.vouchers_add"
	ActionRewardSetActive  = "reward.set_active"
	ActionSettingsUpdate   = "settings.update"
	ActionIdempotencyPurge = "idempotency.purge"
)

// Input describes one action to record.
type Input struct {
	ActorID    string
	ActionType string
	EntityID   string
	Before     any
	After      any
	Source     string
}

// Log appends to and reads the audit chain.
type Log struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewLog constructs a Log backed by db.
func NewLog(db *gorm.DB, c clock.Clock) *Log {
	if c == nil {
		c = clock.System{}
	}
	return &Log{db: db, clock: c}
}

// Append records in in its own transaction.
func (l *Log) Append(ctx context.Context, in Input) (*models.AuditEntry, error) {
	var out *models.AuditEntry
	errTx := dbutil.RunInTransaction(ctx, l.db, func(tx *gorm.DB) error {
		entry, err := l.AppendTx(tx, in)
		out = entry
		return err
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return out, nil
}

// AppendTx records in inside tx. The tail row stays locked until tx ends.
func (l *Log) AppendTx(tx *gorm.DB, in Input) (*models.AuditEntry, error) {
	if strings.TrimSpace(in.ActionType) == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("audit action type is required")
	}
	before, errBefore := snapshot(in.Before)
	if errBefore != nil {
		return nil, apperr.ErrInvalidInput.Wrap(errBefore).WithMessage("audit before snapshot is not JSON encodable")
	}
	after, errAfter := snapshot(in.After)
	if errAfter != nil {
		return nil, apperr.ErrInvalidInput.Wrap(errAfter).WithMessage("audit after snapshot is not JSON encodable")
	}

	tail, errTail := lockTail(tx)
	if errTail != nil {
		return nil, errTail
	}

	now := l.clock.Now()
	entry := models.AuditEntry{
		ID:             uuid.NewString(),
		Sequence:       tail.Sequence + 1,
		ActorID:        in.ActorID,
		ActionType:     in.ActionType,
		EntityID:       in.EntityID,
		BeforeSnapshot: before,
		AfterSnapshot:  after,
		Source:         in.Source,
		Timestamp:      now,
		PreviousHash:   tail.Hash,
	}
	hash, errHash := ComputeHash(&entry)
	if errHash != nil {
		return nil, errHash
	}
	entry.Hash = hash

	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return nil, errCreate
	}

	res := tx.Model(&models.AuditChainTail{}).
		Where("id = ? AND sequence = ?", models.AuditChainTailID, tail.Sequence).
		Updates(map[string]any{"sequence": entry.Sequence, "hash": entry.Hash, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, errors.New("audit: chain tail moved during append")
	}
	return &entry, nil
}

// lockTail loads the chain tail row FOR UPDATE, seeding it when migrations have not.
func lockTail(tx *gorm.DB) (*models.AuditChainTail, error) {
	var tail models.AuditChainTail
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", models.AuditChainTailID).
		First(&tail).Error
	if errFind == nil {
		return &tail, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	seed := models.AuditChainTail{ID: models.AuditChainTailID}
	if errSeed := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; errSeed != nil {
		return nil, errSeed
	}
	if errFind = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", models.AuditChainTailID).
		First(&tail).Error; errFind != nil {
		return nil, errFind
	}
	return &tail, nil
}
