package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
)

// WalletHandler serves admin views of any account's wallet.
type WalletHandler struct {
	ledger *ledger.Orchestrator
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(o *ledger.Orchestrator) *WalletHandler {
	return &WalletHandler{ledger: o}
}

// Get returns the wallet for :account_id.
func (h *WalletHandler) Get(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	w, err := h.ledger.GetWallet(c.Request.Context(), caller, c.Param("account_id"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.FormatWallet(w))
}

// Transactions lists the ledger entries of :account_id.
func (h *WalletHandler) Transactions(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	page, limit := httpx.ParsePage(c)
	rows, total, err := h.ledger.ListTransactions(c.Request.Context(), caller, c.Param("account_id"), page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatTransactions(rows), total, page, limit))
}

// Redemptions lists the redemptions of :account_id.
func (h *WalletHandler) Redemptions(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	page, limit := httpx.ParsePage(c)
	rows, total, err := h.ledger.ListRedemptions(c.Request.Context(), caller, c.Param("account_id"), page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatRedemptions(rows), total, page, limit))
}

// Activity lists the activity feed of :account_id.
func (h *WalletHandler) Activity(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	page, limit := httpx.ParsePage(c)
	rows, total, err := h.ledger.ListActivity(c.Request.Context(), caller, c.Param("account_id"), page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatActivity(rows), total, page, limit))
}

// Reconcile recomputes the balance of :account_id from its history.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	rec, err := h.ledger.ReconcileWallet(c.Request.Context(), caller, c.Param("account_id"))
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id":      rec.AccountID,
		"coin_balance":    rec.CoinBalance,
		"total_earned":    rec.TotalEarned,
		"total_redeemed":  rec.TotalRedeemed,
		"ledger_balance":  rec.LedgerBalance,
		"ledger_earned":   rec.LedgerEarned,
		"ledger_redeemed": rec.LedgerRedeemed,
		"entries":         rec.Entries,
		"consistent":      rec.Consistent,
	})
}

// earnRequest is the body of POST /wallets/:account_id/earn.
type earnRequest struct {
	SourceID string `json:"source_id"` // Game, referral or bonus that awarded the coins.
	Amount   int64  `json:"amount"`    // Positive coin amount.
	Reason   string `json:"reason"`    // Optional free-form reason.
}

// Earn credits coins to :account_id within the daily earn cap.
func (h *WalletHandler) Earn(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	var body earnRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		httpx.InvalidJSON(c)
		return
	}
	res, err := h.ledger.EarnCoins(c.Request.Context(), caller, ledger.EarnRequest{
		AccountID:      c.Param("account_id"),
		SourceID:       body.SourceID,
		Amount:         body.Amount,
		Reason:         body.Reason,
		IdempotencyKey: c.GetHeader(httpx.IdempotencyKeyHeader),
	})
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}
