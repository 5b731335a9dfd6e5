package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/router-for-me/CoinLedger/internal/activity"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/audit"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/fraud"
	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/stock"
	"github.com/router-for-me/CoinLedger/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RedeemRequest exchanges coins for one unit of a reward.
type RedeemRequest struct {
	AccountID      string `json:"account_id"`
	RewardID       string `json:"reward_id"`
	IdempotencyKey string `json:"-"`
}

// RedeemResult is returned by RedeemCoins and stored for idempotent replays.
type RedeemResult struct {
	RedemptionID  string            `json:"redemption_id"`
	VoucherCode   string            `json:"voucher_code,omitempty"`
	TransactionID string            `json:"transaction_id"`
	CoinsSpent    int64             `json:"coins_spent"`
	NewBalance    int64             `json:"new_balance"`
	Risk          *fraud.Assessment `json:"risk,omitempty"`
	Replayed      bool              `json:"replayed,omitempty"`
}

// redeemSnapshot is the audited state around a redemption.
type redeemSnapshot struct {
	CoinBalance   int64 `json:"coin_balance"`
	TotalRedeemed int64 `json:"total_redeemed"`
	RewardStock   int64 `json:"reward_stock"`
}

// failureRecorded lists the errors that leave a failed redemption record behind.
var failureRecorded = []error{
	apperr.ErrOutOfStock,
	apperr.ErrNoVoucherAvailable,
	apperr.ErrInsufficientBalance,
	apperr.ErrRewardInactive,
}

// rejectionAudited lists the business rejections written to the audit chain.
var rejectionAudited = []error{
	apperr.ErrCapExceeded,
	apperr.ErrFraudBlocked,
	apperr.ErrDuplicateRedemption,
	apperr.ErrOutOfStock,
	apperr.ErrNoVoucherAvailable,
	apperr.ErrInsufficientBalance,
	apperr.ErrRewardInactive,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RedeemCoins spends the reward's coin cost and binds a voucher when the reward has them.
func (o *Orchestrator) RedeemCoins(ctx context.Context, caller Caller, req RedeemRequest) (*RedeemResult, error) {
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.RewardID = strings.TrimSpace(req.RewardID)
	if req.AccountID == "" || req.RewardID == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("account id and reward id are required")
	}
	if errAuth := authorizeAccount(caller, req.AccountID); errAuth != nil {
		return nil, errAuth
	}

	scope, errScope := newScope(req.AccountID, opRedeem, req.IdempotencyKey, req.RewardID)
	if errScope != nil {
		return nil, errScope
	}
	var replay RedeemResult
	if found, err := o.lookup(o.db.WithContext(ctx), scope, &replay); err != nil {
		return nil, apperr.Internal(err)
	} else if found {
		replay.Replayed = true
		return &replay, nil
	}

	risk, errScore := o.fraud.ScoreRedemption(o.db.WithContext(ctx), req.AccountID, req.RewardID)
	if errScore != nil {
		if errors.Is(errScore, apperr.ErrDuplicateRedemption) {
			o.recordRejection(ctx, caller, audit.ActionRedeemRejected, req.RewardID, req, nil, errScore)
		}
		return nil, errScore
	}
	if risk.Fraudulent {
		blocked := apperr.ErrFraudBlocked.WithMessage("risk score %d", risk.Score)
		o.recordRejection(ctx, caller, audit.ActionRedeemRejected, req.RewardID, req, risk, blocked)
		return nil, blocked
	}
	if risk.Action == fraud.ActionReview {
		log.WithFields(log.Fields{
			"account_id": req.AccountID,
			"reward_id":  req.RewardID,
			"score":      risk.Score,
			"reasons":    risk.Reasons,
		}).Warn("ledger: redemption flagged for review")
	}

	guard := func(tx *gorm.DB, reward *models.Reward, w *models.Wallet) error {
		if errDup := o.fraud.CheckDuplicate(tx, req.AccountID, reward.ID); errDup != nil {
			return errDup
		}
		return o.caps.CheckRedeemCap(tx, req.AccountID, reward.CoinCost)
	}

	var res *stock.RedeemResult
	errTx := dbutil.RunInTransaction(ctx, o.db, func(tx *gorm.DB) error {
		if found, err := o.lookup(tx, scope, &replay); err != nil {
			return err
		} else if found {
			return errReplayed
		}
		redeemed, errRedeem := o.stock.RedeemTx(tx, stock.RedeemRequest{
			AccountID: req.AccountID,
			RewardID:  req.RewardID,
			ActorID:   caller.AccountID,
		}, guard)
		if errRedeem != nil {
			return errRedeem
		}
		res = redeemed
		return o.remember(tx, scope, resultFrom(redeemed, risk))
	})

	switch {
	case errors.Is(errTx, errReplayed):
		replay.Replayed = true
		return &replay, nil
	case errTx != nil && scope != nil && dbutil.IsUniqueViolation(errTx):
		if found, err := o.replayAfterConflict(ctx, scope, &replay); err != nil {
			return nil, err
		} else if found {
			replay.Replayed = true
			return &replay, nil
		}
		return nil, apperr.Internal(errTx)
	case errTx != nil:
		return nil, o.redeemFailed(ctx, caller, req, risk, errTx)
	}

	out := resultFrom(res, risk)
	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: audit.ActionRedeem,
		EntityID:   res.Redemption.ID,
		Before: redeemSnapshot{
			CoinBalance:   res.WalletBefore.CoinBalance,
			TotalRedeemed: res.WalletBefore.TotalRedeemed,
			RewardStock:   res.RewardBefore.Stock,
		},
		After: map[string]any{
			"account_id":     req.AccountID,
			"reward_id":      req.RewardID,
			"transaction_id": out.TransactionID,
			"coins_spent":    out.CoinsSpent,
			"coin_balance":   res.WalletAfter.CoinBalance,
			"total_redeemed": res.WalletAfter.TotalRedeemed,
			"reward_stock":   res.RewardAfter.Stock,
			"voucher":        util.MaskSecret(out.VoucherCode),
			"risk":           risk,
		},
		Source: caller.Source,
	})
	o.feedAppend(ctx, req.AccountID, activity.ActionRedeem, res.Redemption.ID, map[string]any{
		"reward_id":   req.RewardID,
		"coins_spent": out.CoinsSpent,
		"balance":     out.NewBalance,
	})
	log.WithFields(log.Fields{
		"account_id":    req.AccountID,
		"reward_id":     req.RewardID,
		"redemption_id": out.RedemptionID,
		"voucher":       util.MaskSecret(out.VoucherCode),
	}).Info("ledger: reward redeemed")

	return &out, nil
}

// redeemFailed audits a rolled back redemption and leaves a failed record where appropriate.
func (o *Orchestrator) redeemFailed(ctx context.Context, caller Caller, req RedeemRequest, risk *fraud.Assessment, cause error) error {
	if isInternal(cause) {
		log.WithError(cause).WithFields(log.Fields{
			"account_id": req.AccountID,
			"reward_id":  req.RewardID,
		}).Warn("ledger: redeem failed")
		return apperr.Internal(cause)
	}

	entityID := req.RewardID
	if isAny(cause, failureRecorded) {
		failed, errRecord := o.stock.RecordFailure(context.WithoutCancel(ctx), stock.RedeemRequest{
			AccountID: req.AccountID,
			RewardID:  req.RewardID,
			ActorID:   caller.AccountID,
		}, cause)
		if errRecord != nil {
			log.WithError(errRecord).WithField("account_id", req.AccountID).Warn("ledger: failed redemption not recorded")
		} else {
			entityID = failed.ID
		}
	}
	if isAny(cause, rejectionAudited) {
		o.recordRejection(ctx, caller, audit.ActionRedeemRejected, entityID, req, risk, cause)
	}
	return cause
}

func resultFrom(res *stock.RedeemResult, risk *fraud.Assessment) RedeemResult {
	out := RedeemResult{
		RedemptionID: res.Redemption.ID,
		VoucherCode:  res.VoucherCode(),
		CoinsSpent:   res.Redemption.CoinsSpent,
		NewBalance:   res.WalletAfter.CoinBalance,
		Risk:         risk,
	}
	if res.Transaction != nil {
		out.TransactionID = res.Transaction.ID
	}
	return out
}
