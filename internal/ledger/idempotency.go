package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/audit"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Idempotent operations.
const (
	opEarn   = "earn"
	opRedeem = "redeem"
)

// maxIdempotencyKeyLength matches the column width.
const maxIdempotencyKeyLength = 128

const (
	defaultPurgeBatchSize = 5000
	maxPurgeBatchesPerRun = 2000
)

// errReplayed aborts a transaction whose result was already stored by an earlier request.
var errReplayed = errors.New("ledger: idempotent replay")

// idempotencyScope identifies one logical request.
type idempotencyScope struct {
	AccountID string
	Operation string
	Key       string
	Hash      string
}

func newScope(accountID, operation, key string, params ...string) (*idempotencyScope, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	if len(key) > maxIdempotencyKeyLength {
		return nil, apperr.ErrInvalidInput.WithMessage("idempotency key longer than %d characters", maxIdempotencyKeyLength)
	}
	h := sha256.New()
	h.Write([]byte(operation))
	for _, p := range params {
		h.Write([]byte{0x1f})
		h.Write([]byte(p))
	}
	return &idempotencyScope{AccountID: accountID, Operation: operation, Key: key, Hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// lookup loads a live stored result into out. It reports false when no live result exists.
// Expired rows for the same scope are deleted so the key can be reused.
func (o *Orchestrator) lookup(db *gorm.DB, scope *idempotencyScope, out any) (bool, error) {
	if scope == nil {
		return false, nil
	}
	var row models.IdempotencyKey
	errFind := db.Where("account_id = ? AND operation = ? AND key = ?", scope.AccountID, scope.Operation, scope.Key).
		Limit(1).
		Find(&row).Error
	if errFind != nil {
		return false, errFind
	}
	if row.ID == 0 {
		return false, nil
	}
	if !row.ExpiresAt.After(o.clock.Now()) {
		if errDelete := db.Where("id = ?", row.ID).Delete(&models.IdempotencyKey{}).Error; errDelete != nil {
			return false, errDelete
		}
		return false, nil
	}
	if row.RequestHash != scope.Hash {
		return false, apperr.ErrIdempotencyReused
	}
	if errUnmarshal := json.Unmarshal(row.Response, out); errUnmarshal != nil {
		return false, errUnmarshal
	}
	return true, nil
}

// remember stores result for scope inside tx.
func (o *Orchestrator) remember(tx *gorm.DB, scope *idempotencyScope, result any) error {
	if scope == nil {
		return nil
	}
	raw, errMarshal := json.Marshal(result)
	if errMarshal != nil {
		return errMarshal
	}
	now := o.clock.Now()
	return tx.Create(&models.IdempotencyKey{
		AccountID:   scope.AccountID,
		Operation:   scope.Operation,
		Key:         scope.Key,
		RequestHash: scope.Hash,
		Response:    datatypes.JSON(raw),
		CreatedAt:   now,
		ExpiresAt:   now.Add(o.idemTTL),
	}).Error
}

// replayAfterConflict re-reads scope after a concurrent request stored it first.
func (o *Orchestrator) replayAfterConflict(ctx context.Context, scope *idempotencyScope, out any) (bool, error) {
	found, err := o.lookup(o.db.WithContext(ctx), scope, out)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return found, nil
}

// PurgeExpiredIdempotencyKeys deletes keys that expired before now in bounded batches.
func (o *Orchestrator) PurgeExpiredIdempotencyKeys(ctx context.Context, now time.Time) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if now.IsZero() {
		now = o.clock.Now()
	}

	deletedTotal := int64(0)
	for i := 0; i < maxPurgeBatchesPerRun; i++ {
		if ctx.Err() != nil {
			return deletedTotal, ctx.Err()
		}
		n, err := o.purgeBatch(ctx, now)
		if err != nil {
			log.WithError(err).Warn("ledger: idempotency purge batch failed")
			return deletedTotal, apperr.Internal(err)
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("ledger: purged %d idempotency keys (cutoff=%s)", deletedTotal, now.Format(time.RFC3339))
		o.record(ctx, audit.Input{
			ActorID:    SystemActor,
			ActionType: audit.ActionIdempotencyPurge,
			After:      map[string]any{"deleted": deletedTotal, "cutoff": now.Format(time.RFC3339Nano)},
			Source:     SystemActor,
		})
	}
	return deletedTotal, nil
}

func (o *Orchestrator) purgeBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	errTx := dbutil.RunInTransaction(ctx, o.db, func(tx *gorm.DB) error {
		// A limited subquery keeps each delete short.
		res := tx.Exec(`
			DELETE FROM idempotency_keys
			WHERE id IN (
				SELECT id FROM idempotency_keys
				WHERE expires_at <= ?
				ORDER BY expires_at ASC
				LIMIT ?
			)
		`, cutoff, defaultPurgeBatchSize)
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, errTx
}
