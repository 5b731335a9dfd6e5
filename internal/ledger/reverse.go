package ledger

import (
	"context"
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

// ReverseRequest cancels the effect of a completed transaction.
type ReverseRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// ReverseResult identifies the compensating entry.
type ReverseResult struct {
	ReversalTransactionID string `json:"reversal_transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	AccountID             string `json:"account_id"`
	NewBalance            int64  `json:"new_balance"`
	RedemptionID          string `json:"redemption_id,omitempty"` // Redemption reversed with its debit.
}

// ReverseTransaction writes a compensating entry for req.TransactionID. Admins only.
func (o *Orchestrator) ReverseTransaction(ctx context.Context, caller Caller, req ReverseRequest) (*ReverseResult, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if req.TransactionID == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("transaction id is required")
	}
	if errAuth := authorizeAdmin(caller); errAuth != nil {
		if authenticated(caller) == nil {
			o.recordRejection(ctx, caller, audit.ActionReverseRejected, req.TransactionID, req, nil, errAuth)
		}
		return nil, errAuth
	}

	var (
		res        *wallet.ReverseResult
		redemption *models.Redemption
	)
	errTx := dbutil.RunInTransaction(ctx, o.db, func(tx *gorm.DB) error {
		reversed, err := o.wallets.ApplyReverse(tx, req.TransactionID, caller.AccountID, req.Reason)
		if err != nil {
			return err
		}
		res = reversed
		if reversed.Original.Type != models.TransactionTypeDebit {
			return nil
		}
		marked, errMark := o.stock.MarkReversedTx(tx, reversed.Original.ID)
		redemption = marked
		return errMark
	})
	if errTx != nil {
		if isInternal(errTx) {
			log.WithError(errTx).WithField("transaction_id", req.TransactionID).Warn("ledger: reverse failed")
		}
		return nil, apperr.Internal(errTx)
	}

	w := res.Wallet
	beforeBalance := w.CoinBalance - res.Reversal.Delta
	redemptionID := ""
	if redemption != nil {
		redemptionID = redemption.ID
	}
	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: audit.ActionReverse,
		EntityID:   res.Original.ID,
		Before: map[string]any{
			"status":       "completed",
			"coin_balance": beforeBalance,
		},
		After: map[string]any{
			"status":                  res.Original.Status,
			"reversal_transaction_id": res.Reversal.ID,
			"account_id":              w.AccountID,
			"delta":                   res.Reversal.Delta,
			"coin_balance":            w.CoinBalance,
			"reason":                  res.Reversal.Reason,
			"redemption_id":           redemptionID,
		},
		Source: caller.Source,
	})
	o.feedAppend(ctx, w.AccountID, activity.ActionReverse, res.Reversal.ID, map[string]any{
		"original_transaction_id": res.Original.ID,
		"delta":                   res.Reversal.Delta,
		"balance":                 w.CoinBalance,
		"redemption_id":           redemptionID,
	})
	log.WithFields(log.Fields{
		"account_id":     w.AccountID,
		"transaction_id": res.Original.ID,
		"reversal_id":    res.Reversal.ID,
	}).Info("ledger: transaction reversed")

	return &ReverseResult{
		ReversalTransactionID: res.Reversal.ID,
		OriginalTransactionID: res.Original.ID,
		AccountID:             w.AccountID,
		NewBalance:            w.CoinBalance,
		RedemptionID:          redemptionID,
	}, nil
}
