package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
)

// HealthHandler reports database reachability and the audit chain position.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz pings the database and reads the audit chain tail.
// A missing tail means the schema was never migrated.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "unavailable"})
		return
	}
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "unreachable"})
		return
	}

	var tail models.AuditChainTail
	if errTail := h.db.WithContext(ctx).Where("id = ?", models.AuditChainTailID).First(&tail).Error; errTail != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "not_migrated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"audit_sequence": tail.Sequence,
		"audit_updated":  tail.UpdatedAt,
	})
}
