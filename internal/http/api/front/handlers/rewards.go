package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
)

// RewardHandler serves the reward catalog and redemptions.
type RewardHandler struct {
	ledger *ledger.Orchestrator
}

// NewRewardHandler constructs a RewardHandler.
func NewRewardHandler(o *ledger.Orchestrator) *RewardHandler {
	return &RewardHandler{ledger: o}
}

// List returns the active rewards.
func (h *RewardHandler) List(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	rows, err := h.ledger.ListRewards(c.Request.Context(), caller)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	items := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		items = append(items, gin.H{
			"id":        r.ID,
			"name":      r.Name,
			"coin_cost": r.CoinCost,
			"stock":     r.Stock,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Redeem spends the caller's coins on one unit of the reward.
func (h *RewardHandler) Redeem(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	res, err := h.ledger.RedeemCoins(c.Request.Context(), caller, ledger.RedeemRequest{
		AccountID:      caller.AccountID,
		RewardID:       c.Param("id"),
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

// Redemptions lists the caller's redemption history.
func (h *RewardHandler) Redemptions(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	page, limit := httpx.ParsePage(c)
	rows, total, err := h.ledger.ListRedemptions(c.Request.Context(), caller, caller.AccountID, page, limit)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Paged(httpx.FormatRedemptions(rows), total, page, limit))
}
