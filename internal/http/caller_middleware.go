package http

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/ledger"
	"github.com/router-for-me/CoinLedger/internal/security"
)

// Context keys set by CallerAuthMiddleware.
const (
	callerKey            = "caller"
	callerPermissionsKey = "callerPermissions"
)

// IdempotencyKeyHeader carries the client supplied idempotency key.
const IdempotencyKeyHeader = "Idempotency-Key"

// CallerAuthMiddleware verifies the bearer JWT and stores the resulting caller.
// source is recorded on every audit entry written through the route group.
func CallerAuthMiddleware(secret, source string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, errVerify := security.VerifyCaller(secret, c.GetHeader("Authorization"))
		if errVerify != nil {
			AbortWithError(c, errVerify)
			return
		}
		c.Set(callerKey, ledger.Caller{
			AccountID: claims.AccountID,
			IsAdmin:   claims.IsAdmin,
			Source:    source,
		})
		c.Set(callerPermissionsKey, claims.Permissions)
		c.Next()
	}
}

// CallerFrom returns the caller stored by CallerAuthMiddleware.
func CallerFrom(c *gin.Context) (ledger.Caller, bool) {
	val, exists := c.Get(callerKey)
	if !exists {
		return ledger.Caller{}, false
	}
	caller, ok := val.(ledger.Caller)
	return caller, ok
}

// CallerPermissions returns the route permissions carried by the caller token.
func CallerPermissions(c *gin.Context) []string {
	val, exists := c.Get(callerPermissionsKey)
	if !exists {
		return nil
	}
	perms, _ := val.([]string)
	return perms
}

// MustCaller returns the caller or writes 401 and reports false.
func MustCaller(c *gin.Context) (ledger.Caller, bool) {
	caller, ok := CallerFrom(c)
	if !ok {
		AbortWithError(c, apperr.ErrUnauthenticated)
		return ledger.Caller{}, false
	}
	return caller, true
}
