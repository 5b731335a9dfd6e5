package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/config"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/http/api/admin/handlers"
	"github.com/router-for-me/CoinLedger/internal/ledger"
	"gorm.io/gorm"
)

// Source is recorded on audit entries written through the admin API.
const Source = "admin_api"

// RegisterAdminRoutes registers the health probe and the permission-checked admin routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, o *ledger.Orchestrator, jwtCfg config.JWTConfig) {
	if r == nil || db == nil || o == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	admin := r.Group("/v0/admin")
	admin.Use(httpx.CallerAuthMiddleware(jwtCfg.Secret, Source))
	admin.Use(adminPermissionMiddleware())

	walletHandler := handlers.NewWalletHandler(o)
	admin.GET("/wallets/:account_id", walletHandler.Get)
	admin.GET("/wallets/:account_id/transactions", walletHandler.Transactions)
	admin.GET("/wallets/:account_id/redemptions", walletHandler.Redemptions)
	admin.GET("/wallets/:account_id/activity", walletHandler.Activity)
	admin.GET("/wallets/:account_id/reconcile", walletHandler.Reconcile)
	admin.POST("/wallets/:account_id/earn", walletHandler.Earn)

	transactionHandler := handlers.NewTransactionHandler(o)
	admin.POST("/transactions/:id/reverse", transactionHandler.Reverse)

	rewardHandler := handlers.NewRewardHandler(o)
	admin.GET("/rewards", rewardHandler.List)
	admin.POST("/rewards", rewardHandler.Create)
	admin.POST("/rewards/:id/vouchers", rewardHandler.AddVouchers)
	admin.PUT("/rewards/:id/active", rewardHandler.SetActive)

	auditHandler := handlers.NewAuditHandler(o)
	admin.GET("/audit", auditHandler.Trail)
	admin.GET("/audit/verify", auditHandler.Verify)

	settingsHandler := handlers.NewSettingsHandler(o)
	admin.GET("/settings", settingsHandler.List)
	admin.PUT("/settings/:key", settingsHandler.Update)

	maintenanceHandler := handlers.NewMaintenanceHandler(o)
	admin.POST("/idempotency/purge", maintenanceHandler.PurgeIdempotency)

	admin.GET("/permissions", handlers.ListPermissions)
}
