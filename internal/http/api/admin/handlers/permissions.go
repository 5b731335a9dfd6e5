package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	permissions "github.com/router-for-me/CoinLedger/internal/http/api/admin/permissions"
)

// ListPermissions returns every admin route key a scoped token may carry.
func ListPermissions(c *gin.Context) {
	defs := permissions.Definitions()
	items := make([]gin.H, 0, len(defs))
	for _, d := range defs {
		items = append(items, gin.H{
			"key":    d.Key,
			"method": d.Method,
			"path":   d.Path,
			"module": d.Module,
			"label":  d.Label,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
