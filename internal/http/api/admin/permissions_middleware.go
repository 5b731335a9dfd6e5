package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	permissions "github.com/router-for-me/CoinLedger/internal/http/api/admin/permissions"
)

// adminPermissionMiddleware enforces route permissions for admin callers.
func adminPermissionMiddleware() gin.HandlerFunc {
	permissionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			httpx.AbortWithError(c, apperr.ErrPermissionDenied)
			return
		}

		key := permissions.Key(c.Request.Method, path)
		if _, ok := permissionMap[key]; !ok {
			httpx.AbortWithError(c, apperr.ErrPermissionDenied)
			return
		}

		caller, ok := httpx.CallerFrom(c)
		if !ok {
			httpx.AbortWithError(c, apperr.ErrUnauthenticated)
			return
		}
		if !caller.IsAdmin {
			httpx.AbortWithError(c, apperr.ErrPermissionDenied.WithMessage("admin privileges required"))
			return
		}

		if !permissions.HasPermission(httpx.CallerPermissions(c), key) {
			httpx.AbortWithError(c, apperr.ErrPermissionDenied.WithMessage("token lacks permission %s", key))
			return
		}

		c.Next()
	}
}
