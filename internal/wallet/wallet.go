// Package wallet owns account balances and the append-only transaction ledger.
//
// Every balance change and its ledger entry are written by the same database
// transaction while the wallet row is locked. Lock order across the module is
// reward, then wallet, then voucher or transaction rows.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/clock"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store applies wallet mutations.
type Store struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewStore constructs a Store backed by db.
func NewStore(db *gorm.DB, c clock.Clock) *Store {
	if c == nil {
		c = clock.System{}
	}
	return &Store{db: db, clock: c}
}

// Entry describes one credit or debit request.
type Entry struct {
	AccountID string
	Amount    int64
	ActorID   string
	Source    string
	Reason    string
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.AccountID) == "" {
		return apperr.ErrInvalidInput.WithMessage("account id is required")
	}
	if e.Amount <= 0 {
		return apperr.ErrInvalidAmount
	}
	return nil
}

// Credit adds coins in its own transaction.
func (s *Store) Credit(ctx context.Context, e Entry) (*models.Transaction, error) {
	var out *models.Transaction
	errTx := dbutil.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		txn, _, err := s.ApplyCredit(tx, e)
		out = txn
		return err
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return out, nil
}

// Debit removes coins in its own transaction.
func (s *Store) Debit(ctx context.Context, e Entry) (*models.Transaction, error) {
	var out *models.Transaction
	errTx := dbutil.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		txn, _, err := s.ApplyDebit(tx, e)
		out = txn
		return err
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return out, nil
}

// Reverse compensates a completed transaction in its own transaction.
func (s *Store) Reverse(ctx context.Context, transactionID, actorID, reason string) (*models.Transaction, error) {
	var out *models.Transaction
	errTx := dbutil.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		res, err := s.ApplyReverse(tx, transactionID, actorID, reason)
		if res != nil {
			out = res.Reversal
		}
		return err
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return out, nil
}

// LockForUpdate loads and locks the wallet row. With create set, a missing wallet is created first.
func (s *Store) LockForUpdate(tx *gorm.DB, accountID string, create bool) (*models.Wallet, error) {
	if create {
		now := s.clock.Now()
		fresh := models.Wallet{AccountID: accountID, IsActive: true, CreatedAt: now, LastUpdated: now}
		if errCreate := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; errCreate != nil {
			return nil, errCreate
		}
	}

	var w models.Wallet
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&w).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrWalletNotFound
		}
		return nil, errFind
	}
	return &w, nil
}

// ApplyCredit credits e.Amount inside tx, creating the wallet on first earn.
func (s *Store) ApplyCredit(tx *gorm.DB, e Entry) (*models.Transaction, *models.Wallet, error) {
	if errValidate := e.validate(); errValidate != nil {
		return nil, nil, errValidate
	}
	w, errLock := s.LockForUpdate(tx, e.AccountID, true)
	if errLock != nil {
		return nil, nil, errLock
	}
	return s.ApplyCreditLocked(tx, w, e)
}

// ApplyCreditLocked credits a wallet the caller already locked in tx.
func (s *Store) ApplyCreditLocked(tx *gorm.DB, w *models.Wallet, e Entry) (*models.Transaction, *models.Wallet, error) {
	if errValidate := e.validate(); errValidate != nil {
		return nil, nil, errValidate
	}
	return s.apply(tx, w, models.TransactionTypeCredit, e, e.Amount, nil)
}

// ApplyDebit debits e.Amount inside tx. The wallet must hold at least e.Amount coins.
func (s *Store) ApplyDebit(tx *gorm.DB, e Entry) (*models.Transaction, *models.Wallet, error) {
	if errValidate := e.validate(); errValidate != nil {
		return nil, nil, errValidate
	}
	w, errLock := s.LockForUpdate(tx, e.AccountID, false)
	if errLock != nil {
		if errors.Is(errLock, apperr.ErrWalletNotFound) {
			return nil, nil, apperr.ErrInsufficientFunds
		}
		return nil, nil, errLock
	}
	return s.ApplyDebitLocked(tx, w, e)
}

// ApplyDebitLocked debits a wallet the caller already locked in tx.
func (s *Store) ApplyDebitLocked(tx *gorm.DB, w *models.Wallet, e Entry) (*models.Transaction, *models.Wallet, error) {
	if errValidate := e.validate(); errValidate != nil {
		return nil, nil, errValidate
	}
	if w.CoinBalance < e.Amount {
		return nil, nil, apperr.ErrInsufficientFunds.WithMessage("balance %d is below %d", w.CoinBalance, e.Amount)
	}
	return s.apply(tx, w, models.TransactionTypeDebit, e, -e.Amount, nil)
}

// ReverseResult holds both sides of a reversal.
type ReverseResult struct {
	Original *models.Transaction
	Reversal *models.Transaction
	Wallet   *models.Wallet
}

// ApplyReverse writes a compensating entry for transactionID inside tx and marks the original reversed.
func (s *Store) ApplyReverse(tx *gorm.DB, transactionID, actorID, reason string) (*ReverseResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("transaction id is required")
	}

	var peek models.Transaction
	if errFind := tx.Select("account_id").Where("id = ?", transactionID).First(&peek).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrTransactionNotFound
		}
		return nil, errFind
	}

	w, errLock := s.LockForUpdate(tx, peek.AccountID, false)
	if errLock != nil {
		return nil, errLock
	}

	var original models.Transaction
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", transactionID).
		First(&original).Error; errFind != nil {
		return nil, errFind
	}

	opposite, ok := original.Type.Opposite()
	if !ok {
		return nil, apperr.ErrNotReversible.WithMessage("transaction %s is itself a reversal", original.ID)
	}
	switch original.Status {
	case models.TransactionStatusReversed:
		return nil, apperr.ErrAlreadyReversed
	case models.TransactionStatusCompleted:
	default:
		return nil, apperr.ErrNotReversible.WithMessage("transaction %s is %s", original.ID, original.Status)
	}

	delta := -original.Delta
	if w.CoinBalance+delta < 0 {
		return nil, apperr.ErrInsufficientFunds.WithMessage("reversing %s would leave a negative balance", original.ID)
	}

	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", original.ID, models.TransactionStatusCompleted).
		Update("status", models.TransactionStatusReversed)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, apperr.ErrAlreadyReversed
	}
	original.Status = models.TransactionStatusReversed

	if strings.TrimSpace(reason) == "" {
		reason = fmt.Sprintf("compensating %s for %s", opposite, original.ID)
	}
	e := Entry{
		AccountID: original.AccountID,
		Amount:    original.Amount,
		ActorID:   actorID,
		Source:    original.Source,
		Reason:    reason,
	}
	reversal, updated, errApply := s.apply(tx, w, models.TransactionTypeReversal, e, delta, &original)
	if errApply != nil {
		return nil, errApply
	}
	return &ReverseResult{Original: &original, Reversal: reversal, Wallet: updated}, nil
}

// apply moves the locked wallet by delta and appends the matching ledger entry.
func (s *Store) apply(tx *gorm.DB, w *models.Wallet, kind models.TransactionType, e Entry, delta int64, reverses *models.Transaction) (*models.Transaction, *models.Wallet, error) {
	if !w.IsActive {
		return nil, nil, apperr.ErrWalletInactive
	}

	if delta > 0 && w.CoinBalance > math.MaxInt64-delta {
		return nil, nil, apperr.ErrInvalidAmount.WithMessage("credit would overflow the balance")
	}

	now := s.clock.Now()
	next := *w
	next.CoinBalance = w.CoinBalance + delta
	next.LastUpdated = now
	switch {
	case kind == models.TransactionTypeCredit:
		if w.TotalEarned > math.MaxInt64-e.Amount {
			return nil, nil, apperr.ErrInvalidAmount.WithMessage("credit would overflow total earned")
		}
		next.TotalEarned += e.Amount
	case kind == models.TransactionTypeDebit:
		if w.TotalRedeemed > math.MaxInt64-e.Amount {
			return nil, nil, apperr.ErrInvalidAmount.WithMessage("debit would overflow total redeemed")
		}
		next.TotalRedeemed += e.Amount
	case reverses != nil && reverses.Type == models.TransactionTypeCredit:
		next.TotalEarned -= e.Amount
	case reverses != nil && reverses.Type == models.TransactionTypeDebit:
		next.TotalRedeemed -= e.Amount
	}
	if next.CoinBalance < 0 {
		return nil, nil, apperr.ErrInsufficientFunds
	}

	res := tx.Model(&models.Wallet{}).
		Where("account_id = ? AND coin_balance = ?", w.AccountID, w.CoinBalance).
		Updates(map[string]any{
			"coin_balance":   next.CoinBalance,
			"total_earned":   next.TotalEarned,
			"total_redeemed": next.TotalRedeemed,
			"last_updated":   now,
		})
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, nil, apperr.ErrInternal.WithMessage("wallet %s changed concurrently", w.AccountID)
	}

	txn := models.Transaction{
		ID:               uuid.NewString(),
		AccountID:        w.AccountID,
		Type:             kind,
		Amount:           e.Amount,
		Delta:            delta,
		Currency:         models.DefaultCurrency,
		ResultingBalance: next.CoinBalance,
		Status:           models.TransactionStatusCompleted,
		ActorID:          e.ActorID,
		Source:           e.Source,
		Reason:           e.Reason,
		CreatedAt:        now,
	}
	if reverses != nil {
		id := reverses.ID
		txn.ReversalOf = &id
	}
	if errCreate := tx.Create(&txn).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) && reverses != nil {
			return nil, nil, apperr.ErrAlreadyReversed
		}
		return nil, nil, errCreate
	}
	return &txn, &next, nil
}
