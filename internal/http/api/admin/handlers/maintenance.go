package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/ledger"
)

// MaintenanceHandler runs housekeeping jobs on demand.
type MaintenanceHandler struct {
	ledger *ledger.Orchestrator
}

// NewMaintenanceHandler constructs a MaintenanceHandler.
func NewMaintenanceHandler(o *ledger.Orchestrator) *MaintenanceHandler {
	return &MaintenanceHandler{ledger: o}
}

// PurgeIdempotency deletes expired idempotency keys.
func (h *MaintenanceHandler) PurgeIdempotency(c *gin.Context) {
	deleted, err := h.ledger.PurgeExpiredIdempotencyKeys(c.Request.Context(), time.Time{})
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
