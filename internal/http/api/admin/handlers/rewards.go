package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
	"github.com/router-for-me/CoinLedger/internal/stock"
	"github.com/router-for-me/CoinLedger/internal/util"
)

// RewardHandler handles admin operations for rewards and vouchers.
type RewardHandler struct {
	ledger *ledger.Orchestrator
}

// NewRewardHandler constructs a RewardHandler.
func NewRewardHandler(o *ledger.Orchestrator) *RewardHandler {
	return &RewardHandler{ledger: o}
}

// List returns every reward, active or not.
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
	for i := range rows {
		items = append(items, httpx.FormatReward(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// createRewardRequest captures the payload for creating a reward.
type createRewardRequest struct {
	Name            string `json:"name"`             // Display name.
	CoinCost        int64  `json:"coin_cost"`        // Coins per redemption.
	Stock           int64  `json:"stock"`            // Initial units without vouchers.
	RequiresVoucher bool   `json:"requires_voucher"` // Each redemption binds a voucher.
	IsActive        *bool  `json:"is_active"`        // Optional active flag, default true.
}

// Create adds a reward.
func (h *RewardHandler) Create(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	var body createRewardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		httpx.InvalidJSON(c)
		return
	}
	reward, err := h.ledger.CreateReward(c.Request.Context(), caller, stock.RewardInput{
		Name:            body.Name,
		CoinCost:        body.CoinCost,
		Stock:           body.Stock,
		RequiresVoucher: body.RequiresVoucher,
		Inactive:        body.IsActive != nil && !*body.IsActive,
	})
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpx.FormatReward(reward))
}

// addVouchersRequest supplies codes or asks for count generated codes.
type addVouchersRequest struct {
	Codes []string `json:"codes"` // Explicit codes.
	Count int      `json:"count"` // Number of codes to generate when Codes is empty.
}

// AddVouchers attaches vouchers to :id and raises its stock.
func (h *RewardHandler) AddVouchers(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	var body addVouchersRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		httpx.InvalidJSON(c)
		return
	}
	batch, err := h.ledger.AddVouchers(c.Request.Context(), caller, c.Param("id"), body.Codes, body.Count)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	codes := make([]string, 0, len(batch.Vouchers))
	for _, v := range batch.Vouchers {
		codes = append(codes, util.MaskSecret(v.Code))
	}
	c.JSON(http.StatusCreated, gin.H{
		"reward": httpx.FormatReward(&batch.After),
		"added":  len(batch.Vouchers),
		"codes":  codes,
	})
}

// setActiveRequest toggles a reward.
type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// SetActive enables or disables :id.
func (h *RewardHandler) SetActive(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	var body setActiveRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.IsActive == nil {
		httpx.InvalidJSON(c)
		return
	}
	reward, err := h.ledger.SetRewardActive(c.Request.Context(), caller, c.Param("id"), *body.IsActive)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.FormatReward(reward))
}
