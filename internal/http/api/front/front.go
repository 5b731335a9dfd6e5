package front

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/config"
	httpx "github.com/router-for-me/CoinLedger/internal/http"
	"github.com/router-for-me/CoinLedger/internal/http/api/front/handlers"
	"github.com/router-for-me/CoinLedger/internal/ledger"
)

// Source is recorded on audit entries written through the front API.
const Source = "front_api"

// RegisterFrontRoutes registers the authenticated account-facing routes.
func RegisterFrontRoutes(r *gin.Engine, o *ledger.Orchestrator, jwtCfg config.JWTConfig) {
	if r == nil || o == nil {
		return
	}

	front := r.Group("/v0/front")
	front.Use(httpx.CallerAuthMiddleware(jwtCfg.Secret, Source))

	walletHandler := handlers.NewWalletHandler(o)
	front.GET("/wallet", walletHandler.Get)
	front.GET("/wallet/transactions", walletHandler.Transactions)
	front.GET("/wallet/activity", walletHandler.Activity)
	front.GET("/wallet/audit", walletHandler.Audit)
	front.POST("/earn", walletHandler.Earn)

	rewardHandler := handlers.NewRewardHandler(o)
	front.GET("/rewards", rewardHandler.List)
	front.POST("/rewards/:id/redeem", rewardHandler.Redeem)
	front.GET("/redemptions", rewardHandler.Redemptions)
}
