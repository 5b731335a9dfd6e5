// Package stock allocates reward stock and binds vouchers to redemptions.
//
// A redemption locks the reward row first, then the wallet, then one voucher.
// Stock check, stock decrement, wallet debit, voucher binding and the redemption
// record all commit or roll back together.
package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/clock"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/wallet"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Allocator performs stock-bounded redemptions.
type Allocator struct {
	db      *gorm.DB
	clock   clock.Clock
	wallets *wallet.Store
}

// NewAllocator constructs an Allocator that debits through wallets.
func NewAllocator(db *gorm.DB, c clock.Clock, wallets *wallet.Store) *Allocator {
	if c == nil {
		c = clock.System{}
	}
	return &Allocator{db: db, clock: c, wallets: wallets}
}

// RedeemRequest identifies one redemption attempt.
type RedeemRequest struct {
	AccountID string
	RewardID  string
	ActorID   string
}

// Guard runs after the reward and wallet are locked and before anything is written.
type Guard func(tx *gorm.DB, reward *models.Reward, w *models.Wallet) error

// RedeemResult carries the committed redemption and the state on both sides of it.
type RedeemResult struct {
	Redemption   *models.Redemption
	Transaction  *models.Transaction
	RewardBefore models.Reward
	RewardAfter  models.Reward
	WalletBefore models.Wallet
	WalletAfter  models.Wallet
}

// VoucherCode returns the bound code, or "".
func (r *RedeemResult) VoucherCode() string {
	if r == nil || r.Redemption == nil || r.Redemption.VoucherCode == nil {
		return ""
	}
	return *r.Redemption.VoucherCode
}

// Redeem runs RedeemTx in its own transaction.
func (a *Allocator) Redeem(ctx context.Context, req RedeemRequest, guard Guard) (*RedeemResult, error) {
	var out *RedeemResult
	errTx := dbutil.RunInTransaction(ctx, a.db, func(tx *gorm.DB) error {
		res, err := a.RedeemTx(tx, req, guard)
		out = res
		return err
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return out, nil
}

// RedeemTx exchanges the reward's coin cost for one unit of stock inside tx.
func (a *Allocator) RedeemTx(tx *gorm.DB, req RedeemRequest, guard Guard) (*RedeemResult, error) {
	if strings.TrimSpace(req.AccountID) == "" || strings.TrimSpace(req.RewardID) == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("account id and reward id are required")
	}

	reward, errReward := LockReward(tx, req.RewardID)
	if errReward != nil {
		return nil, errReward
	}
	if !reward.IsActive {
		return nil, apperr.ErrRewardInactive
	}
	if reward.Stock <= 0 {
		return nil, apperr.ErrOutOfStock
	}

	w, errWallet := a.wallets.LockForUpdate(tx, req.AccountID, false)
	if errWallet != nil {
		if errors.Is(errWallet, apperr.ErrWalletNotFound) {
			return nil, apperr.ErrInsufficientBalance.WithMessage("account %s has no wallet", req.AccountID)
		}
		return nil, errWallet
	}
	if guard != nil {
		if errGuard := guard(tx, reward, w); errGuard != nil {
			return nil, errGuard
		}
	}
	if w.CoinBalance < reward.CoinCost {
		return nil, apperr.ErrInsufficientBalance.WithMessage("balance %d is below cost %d", w.CoinBalance, reward.CoinCost)
	}

	res := &RedeemResult{RewardBefore: *reward, WalletBefore: *w}
	now := a.clock.Now()

	dec := tx.Model(&models.Reward{}).
		Where("id = ? AND stock > 0", reward.ID).
		Updates(map[string]any{"stock": gorm.Expr("stock - 1"), "updated_at": now})
	if dec.Error != nil {
		return nil, dec.Error
	}
	if dec.RowsAffected != 1 {
		return nil, apperr.ErrOutOfStock
	}
	res.RewardAfter = *reward
	res.RewardAfter.Stock--
	res.RewardAfter.UpdatedAt = now

	txn, updated, errDebit := a.wallets.ApplyDebitLocked(tx, w, wallet.Entry{
		AccountID: req.AccountID,
		Amount:    reward.CoinCost,
		ActorID:   req.ActorID,
		Source:    reward.ID,
		Reason:    fmt.Sprintf("redeem %s", reward.Name),
	})
	if errDebit != nil {
		return nil, errDebit
	}
	res.Transaction = txn
	res.WalletAfter = *updated

	redemption := &models.Redemption{
		ID:            uuid.NewString(),
		AccountID:     req.AccountID,
		RewardID:      reward.ID,
		CoinsSpent:    reward.CoinCost,
		Status:        models.RedemptionStatusPending,
		TransactionID: &txn.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	voucher, errVoucher := a.bindVoucher(tx, reward, req.AccountID, redemption.ID)
	if errVoucher != nil {
		return nil, errVoucher
	}
	if voucher != nil {
		code := voucher.Code
		redemption.VoucherCode = &code
	}

	if errTransition := redemption.Transition(models.RedemptionStatusSuccess); errTransition != nil {
		return nil, errTransition
	}
	if errCreate := tx.Create(redemption).Error; errCreate != nil {
		return nil, errCreate
	}
	res.Redemption = redemption
	return res, nil
}

// bindVoucher marks the oldest unredeemed voucher of reward as redeemed by accountID.
// Rewards that do not require vouchers return nil.
func (a *Allocator) bindVoucher(tx *gorm.DB, reward *models.Reward, accountID, redemptionID string) (*models.Voucher, error) {
	var v models.Voucher
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reward_id = ? AND redeemed = ?", reward.ID, false).
		Order("created_at ASC, id ASC").
		Limit(1).
		Find(&v).Error
	if errFind != nil {
		return nil, errFind
	}
	if v.ID == "" {
		if reward.RequiresVoucher {
			return nil, apperr.ErrNoVoucherAvailable
		}
		return nil, nil
	}

	now := a.clock.Now()
	res := tx.Model(&models.Voucher{}).
		Where("id = ? AND redeemed = ?", v.ID, false).
		Updates(map[string]any{
			"redeemed":      true,
			"redeemed_by":   accountID,
			"redemption_id": redemptionID,
			"redeemed_at":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, apperr.ErrNoVoucherAvailable
	}
	v.Redeemed = true
	v.RedeemedBy = &accountID
	v.RedemptionID = &redemptionID
	v.RedeemedAt = &now
	return &v, nil
}

// LockReward loads and locks the reward row inside tx.
func LockReward(tx *gorm.DB, rewardID string) (*models.Reward, error) {
	var reward models.Reward
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", rewardID).
		First(&reward).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRewardNotFound
		}
		return nil, errFind
	}
	return &reward, nil
}

// RecordFailure stores a failed redemption attempt in its own transaction. No stock or balance changes.
func (a *Allocator) RecordFailure(ctx context.Context, req RedeemRequest, cause error) (*models.Redemption, error) {
	now := a.clock.Now()
	redemption := &models.Redemption{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		RewardID:  req.RewardID,
		Status:    models.RedemptionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errTransition := redemption.Transition(models.RedemptionStatusFailed); errTransition != nil {
		return nil, errTransition
	}
	redemption.FailureCode = apperr.CodeOf(cause)

	errTx := dbutil.RunInTransaction(ctx, a.db, func(tx *gorm.DB) error {
		return tx.Create(redemption).Error
	})
	if errTx != nil {
		return nil, apperr.Internal(errTx)
	}
	return redemption, nil
}

// MarkReversedTx moves the successful redemption backed by transactionID to reversed inside tx.
// It returns nil when no redemption is backed by the transaction. The bound voucher stays
// redeemed and stock is not restored: the code has already been handed out.
func (a *Allocator) MarkReversedTx(tx *gorm.DB, transactionID string) (*models.Redemption, error) {
	var redemption models.Redemption
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", transactionID).
		Limit(1).
		Find(&redemption).Error
	if errFind != nil {
		return nil, errFind
	}
	if redemption.ID == "" {
		return nil, nil
	}

	previous := redemption.Status
	if errTransition := redemption.Transition(models.RedemptionStatusReversed); errTransition != nil {
		return nil, apperr.ErrNotReversible.WithMessage("redemption %s is %s", redemption.ID, previous)
	}
	now := a.clock.Now()
	res := tx.Model(&models.Redemption{}).
		Where("id = ? AND status = ?", redemption.ID, previous).
		Updates(map[string]any{"status": redemption.Status, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, apperr.ErrAlreadyReversed
	}
	redemption.UpdatedAt = now
	return &redemption, nil
}
