package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/audit"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
)

// WalletHandler serves the caller's own wallet.
type WalletHandler struct {
	ledger *ledger.Orchestrator
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(o *ledger.Orchestrator) *WalletHandler {
	return &WalletHandler{ledger: o}
}

// Get returns the caller's wallet.
func (h *WalletHandler) Get(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	w, err := h.ledger.GetWallet(c.Request.Context(), caller, caller.AccountID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.FormatWallet(w))
}

// Transactions lists the caller's ledger entries, newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	page, limit := httpx.ParsePage(c)
	rows, total, err := h.ledger.ListTransactions(c.Request.Context(), caller, caller.AccountID, page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatTransactions(rows), total, page, limit))
}

// Activity lists the caller's activity feed.
func (h *WalletHandler) Activity(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	page, limit := httpx.ParsePage(c)
	rows, total, err := h.ledger.ListActivity(c.Request.Context(), caller, caller.AccountID, page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatActivity(rows), total, page, limit))
}

// Audit lists audit entries the caller acted in.
func (h *WalletHandler) Audit(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	page, limit := httpx.ParsePage(c)
	filter := audit.Filter{ActionType: strings.TrimSpace(c.Query("action_type"))}
	rows, total, err := h.ledger.GetAuditTrail(c.Request.Context(), caller, filter, page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatAuditEntries(rows), total, page, limit))
}

// earnRequest is the body of POST /earn.
type earnRequest struct {
	SourceID string `json:"source_id"` // Game, referral or bonus that awarded the coins.
	Amount   int64  `json:"amount"`    // Positive coin amount.
	Reason   string `json:"reason"`    // Optional free-form reason.
}

// Earn credits coins to the caller's wallet.
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
		AccountID:      caller.AccountID,
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
