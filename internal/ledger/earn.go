package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/router-for-me/CoinLedger/internal/activity"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/audit"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/wallet"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EarnRequest credits coins from a source such as a game, referral or subscription bonus.
type EarnRequest struct {
	AccountID      string `json:"account_id"`
	SourceID       string `json:"source_id"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"-"`
}

// EarnResult is returned by EarnCoins and stored for idempotent replays.
type EarnResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int64  `json:"new_balance"`
	Replayed      bool   `json:"replayed,omitempty"`
}

// earnSnapshot is the audited wallet state around an earn.
type earnSnapshot struct {
	CoinBalance int64 `json:"coin_balance"`
	TotalEarned int64 `json:"total_earned"`
}

// EarnCoins credits req.Amount to req.AccountID within the daily earn cap.
func (o *Orchestrator) EarnCoins(ctx context.Context, caller Caller, req EarnRequest) (*EarnResult, error) {
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.SourceID = strings.TrimSpace(req.SourceID)
	if req.AccountID == "" || req.SourceID == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("account id and source id are required")
	}
	if req.Amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	if errAuth := authorizeAccount(caller, req.AccountID); errAuth != nil {
		return nil, errAuth
	}

	scope, errScope := newScope(req.AccountID, opEarn, req.IdempotencyKey, req.SourceID, strconv.FormatInt(req.Amount, 10))
	if errScope != nil {
		return nil, errScope
	}
	var replay EarnResult
	if found, err := o.lookup(o.db.WithContext(ctx), scope, &replay); err != nil {
		return nil, apperr.Internal(err)
	} else if found {
		replay.Replayed = true
		return &replay, nil
	}

	var (
		result earnSnapshot
		before earnSnapshot
		txn    *models.Transaction
	)
	errTx := dbutil.RunInTransaction(ctx, o.db, func(tx *gorm.DB) error {
		if found, err := o.lookup(tx, scope, &replay); err != nil {
			return err
		} else if found {
			return errReplayed
		}

		w, errLock := o.wallets.LockForUpdate(tx, req.AccountID, true)
		if errLock != nil {
			return errLock
		}
		if errCap := o.caps.CheckEarnCap(tx, req.AccountID, req.Amount); errCap != nil {
			return errCap
		}
		before = earnSnapshot{CoinBalance: w.CoinBalance, TotalEarned: w.TotalEarned}

		credited, updated, errCredit := o.wallets.ApplyCreditLocked(tx, w, wallet.Entry{
			AccountID: req.AccountID,
			Amount:    req.Amount,
			ActorID:   caller.AccountID,
			Source:    req.SourceID,
			Reason:    req.Reason,
		})
		if errCredit != nil {
			return errCredit
		}
		txn = credited
		result = earnSnapshot{CoinBalance: updated.CoinBalance, TotalEarned: updated.TotalEarned}
		return o.remember(tx, scope, EarnResult{TransactionID: credited.ID, NewBalance: updated.CoinBalance})
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
	case errors.Is(errTx, apperr.ErrCapExceeded):
		o.recordRejection(ctx, caller, audit.ActionEarnRejected, req.AccountID, req, nil, errTx)
		return nil, errTx
	case errTx != nil:
		if isInternal(errTx) {
			log.WithError(errTx).WithField("account_id", req.AccountID).Warn("ledger: earn failed")
		}
		return nil, apperr.Internal(errTx)
	}

	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: audit.ActionEarn,
		EntityID:   txn.ID,
		Before:     before,
		After: map[string]any{
			"account_id":   req.AccountID,
			"source_id":    req.SourceID,
			"amount":       req.Amount,
			"coin_balance": result.CoinBalance,
			"total_earned": result.TotalEarned,
		},
		Source: caller.Source,
	})
	o.feedAppend(ctx, req.AccountID, activity.ActionEarn, txn.ID, map[string]any{
		"amount":    req.Amount,
		"source_id": req.SourceID,
		"balance":   result.CoinBalance,
	})
	log.WithFields(log.Fields{
		"account_id":     req.AccountID,
		"transaction_id": txn.ID,
		"amount":         req.Amount,
	}).Info("ledger: coins earned")

	return &EarnResult{TransactionID: txn.ID, NewBalance: result.CoinBalance}, nil
}
