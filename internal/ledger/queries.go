package ledger

import (
	"context"

	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/wallet"
)

// GetWallet returns an account's wallet.
func (o *Orchestrator) GetWallet(ctx context.Context, caller Caller, accountID string) (*models.Wallet, error) {
	if errAuth := authorizeAccount(caller, accountID); errAuth != nil {
		return nil, errAuth
	}
	return o.wallets.Get(ctx, accountID)
}

// ListTransactions returns one page of an account's ledger entries.
func (o *Orchestrator) ListTransactions(ctx context.Context, caller Caller, accountID string, page, limit int) ([]models.Transaction, int64, error) {
	if errAuth := authorizeAccount(caller, accountID); errAuth != nil {
		return nil, 0, errAuth
	}
	return o.wallets.ListTransactions(ctx, accountID, page, limit)
}

// ListRedemptions returns one page of an account's redemptions.
func (o *Orchestrator) ListRedemptions(ctx context.Context, caller Caller, accountID string, page, limit int) ([]models.Redemption, int64, error) {
	if errAuth := authorizeAccount(caller, accountID); errAuth != nil {
		return nil, 0, errAuth
	}
	return o.stock.ListRedemptions(ctx, accountID, page, limit)
}

// ListActivity returns one page of an account's activity feed.
func (o *Orchestrator) ListActivity(ctx context.Context, caller Caller, accountID string, page, limit int) ([]models.ActivityLog, int64, error) {
	if errAuth := authorizeAccount(caller, accountID); errAuth != nil {
		return nil, 0, errAuth
	}
	return o.feed.List(ctx, accountID, page, limit)
}

// ListRewards returns the reward catalog. Non-admins see active rewards only.
func (o *Orchestrator) ListRewards(ctx context.Context, caller Caller) ([]models.Reward, error) {
	if errAuth := authenticated(caller); errAuth != nil {
		return nil, errAuth
	}
	return o.stock.ListRewards(ctx, !caller.IsAdmin)
}

// ReconcileWallet recomputes an account's balance from its full history.
func (o *Orchestrator) ReconcileWallet(ctx context.Context, caller Caller, accountID string) (*wallet.Reconciliation, error) {
	if errAuth := authorizeAccount(caller, accountID); errAuth != nil {
		return nil, errAuth
	}
	return o.wallets.Reconcile(ctx, accountID)
}
