package wallet

import (
	"context"
	"errors"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
)

// Get returns the wallet for accountID.
func (s *Store) Get(ctx context.Context, accountID string) (*models.Wallet, error) {
	var w models.Wallet
	if errFind := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&w).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrWalletNotFound
		}
		return nil, apperr.Internal(errFind)
	}
	return &w, nil
}

// GetTransaction returns one ledger entry by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrTransactionNotFound
		}
		return nil, apperr.Internal(errFind)
	}
	return &txn, nil
}

// ListTransactions returns one page of an account's history, newest first, and the total count.
func (s *Store) ListTransactions(ctx context.Context, accountID string, page, limit int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("account_id = ?", accountID)
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, apperr.Internal(errCount)
	}

	var rows []models.Transaction
	if errFind := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, 0, apperr.Internal(errFind)
	}
	return rows, total, nil
}

// Reconciliation compares a wallet against its full ledger history.
type Reconciliation struct {
	AccountID      string `json:"account_id"`
	CoinBalance    int64  `json:"coin_balance"`
	TotalEarned    int64  `json:"total_earned"`
	TotalRedeemed  int64  `json:"total_redeemed"`
	LedgerBalance  int64  `json:"ledger_balance"`
	LedgerEarned   int64  `json:"ledger_earned"`
	LedgerRedeemed int64  `json:"ledger_redeemed"`
	Entries        int64  `json:"entries"`
	Consistent     bool   `json:"consistent"`
}

// Reconcile recomputes the balance and totals from every ledger entry of accountID.
func (s *Store) Reconcile(ctx context.Context, accountID string) (*Reconciliation, error) {
	w, errGet := s.Get(ctx, accountID)
	if errGet != nil {
		return nil, errGet
	}

	// sums holds the per-direction ledger aggregates.
	var sums struct {
		Balance     int64
		Credits     int64
		Debits      int64
		UndoCredits int64
		UndoDebits  int64
		Entries     int64
	}
	if errScan := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("account_id = ?", accountID).
		Select(`COALESCE(SUM(delta), 0) AS balance,
			COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS credits,
			COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS debits,
			COALESCE(SUM(CASE WHEN type = ? AND delta < 0 THEN amount ELSE 0 END), 0) AS undo_credits,
			COALESCE(SUM(CASE WHEN type = ? AND delta > 0 THEN amount ELSE 0 END), 0) AS undo_debits,
			COUNT(*) AS entries`,
			models.TransactionTypeCredit, models.TransactionTypeDebit,
			models.TransactionTypeReversal, models.TransactionTypeReversal).
		Scan(&sums).Error; errScan != nil {
		return nil, apperr.Internal(errScan)
	}

	r := &Reconciliation{
		AccountID:      w.AccountID,
		CoinBalance:    w.CoinBalance,
		TotalEarned:    w.TotalEarned,
		TotalRedeemed:  w.TotalRedeemed,
		LedgerBalance:  sums.Balance,
		LedgerEarned:   sums.Credits - sums.UndoCredits,
		LedgerRedeemed: sums.Debits - sums.UndoDebits,
		Entries:        sums.Entries,
	}
	r.Consistent = r.CoinBalance == r.LedgerBalance &&
		r.CoinBalance == r.TotalEarned-r.TotalRedeemed &&
		r.TotalEarned == r.LedgerEarned &&
		r.TotalRedeemed == r.LedgerRedeemed
	return r, nil
}
