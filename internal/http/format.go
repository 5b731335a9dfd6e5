package http

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/models"
)

// FormatWallet renders a wallet for API responses.
func FormatWallet(w *models.Wallet) gin.H {
	return gin.H{
		"account_id":     w.AccountID,
		"coin_balance":   w.CoinBalance,
		"cash_balance":   w.CashBalance.String(),
		"total_earned":   w.TotalEarned,
		"total_redeemed": w.TotalRedeemed,
		"is_active":      w.IsActive,
		"last_updated":   w.LastUpdated,
	}
}

// FormatTransactions renders ledger entries for API responses.
func FormatTransactions(rows []models.Transaction) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, t := range rows {
		out = append(out, gin.H{
			"id":                t.ID,
			"account_id":        t.AccountID,
			"type":              t.Type,
			"amount":            t.Amount,
			"delta":             t.Delta,
			"currency":          t.Currency,
			"resulting_balance": t.ResultingBalance,
			"status":            t.Status,
			"actor_id":          t.ActorID,
			"source":            t.Source,
			"reason":            t.Reason,
			"reversal_of":       t.ReversalOf,
			"created_at":        t.CreatedAt,
		})
	}
	return out
}

// FormatRedemptions renders redemptions for API responses.
func FormatRedemptions(rows []models.Redemption) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		item := gin.H{
			"id":             r.ID,
			"account_id":     r.AccountID,
			"reward_id":      r.RewardID,
			"coins_spent":    r.CoinsSpent,
			"status":         r.Status,
			"transaction_id": r.TransactionID,
			"created_at":     r.CreatedAt,
		}
		if r.VoucherCode != nil {
			item["voucher_code"] = *r.VoucherCode
		}
		if r.FailureCode != "" {
			item["failure_code"] = r.FailureCode
		}
		out = append(out, item)
	}
	return out
}

// FormatActivity renders activity feed entries for API responses.
func FormatActivity(rows []models.ActivityLog) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, a := range rows {
		out = append(out, gin.H{
			"id":         a.ID,
			"action":     a.Action,
			"entity_id":  a.EntityID,
			"detail":     a.Detail,
			"created_at": a.CreatedAt,
		})
	}
	return out
}

// FormatAuditEntries renders audit chain entries for API responses.
func FormatAuditEntries(rows []models.AuditEntry) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, e := range rows {
		out = append(out, gin.H{
			"id":              e.ID,
			"sequence":        e.Sequence,
			"actor_id":        e.ActorID,
			"action_type":     e.ActionType,
			"entity_id":       e.EntityID,
			"before_snapshot": e.BeforeSnapshot,
			"after_snapshot":  e.AfterSnapshot,
			"source":          e.Source,
			"timestamp":       e.Timestamp,
			"hash":            e.Hash,
			"previous_hash":   e.PreviousHash,
		})
	}
	return out
}

// FormatReward renders a reward for API responses.
func FormatReward(r *models.Reward) gin.H {
	return gin.H{
		"id":               r.ID,
		"name":             r.Name,
		"coin_cost":        r.CoinCost,
		"stock":            r.Stock,
		"is_active":        r.IsActive,
		"requires_voucher": r.RequiresVoucher,
		"created_at":       r.CreatedAt,
		"updated_at":       r.UpdatedAt,
	}
}
