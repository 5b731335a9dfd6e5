package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
	"github.com/router-for-me/CoinLedger/internal/settings"
)

// SettingsHandler reads and updates the tunable thresholds.
type SettingsHandler struct {
	ledger *ledger.Orchestrator
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(o *ledger.Orchestrator) *SettingsHandler {
	return &SettingsHandler{ledger: o}
}

// List returns the effective value of every threshold.
func (h *SettingsHandler) List(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	values, err := h.ledger.EffectiveSettings(caller)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": values, "updated_at": settings.DBConfigUpdatedAt()})
}

// updateSettingRequest carries the new value.
type updateSettingRequest struct {
	Value *int64 `json:"value"`
}

// Update stores the value for :key.
func (h *SettingsHandler) Update(c *gin.Context) {
	caller, ok := httpx.MustCaller(c)
	if !ok {
		return
	}
	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.Value == nil {
		httpx.InvalidJSON(c)
		return
	}
	key := c.Param("key")
	if err := h.ledger.UpdateSetting(c.Request.Context(), caller, key, *body.Value); err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": *body.Value})
}
