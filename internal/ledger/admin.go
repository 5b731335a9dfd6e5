package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/audit"
	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/settings"
	"github.com/router-for-me/CoinLedger/internal/stock"
	log "github.com/sirupsen/logrus"
)

// tunableKeys are the settings UpdateSetting accepts.
var tunableKeys = map[string]struct{}{
	settings.DailyEarnLimitKey:              {},
	settings.MonthlyRedeemLimitKey:          {},
	settings.FraudDailyRedeemLimitKey:       {},
	settings.FraudWeeklyRedeemLimitKey:      {},
	settings.FraudMonthlyRedeemLimitKey:     {},
	settings.FraudDailyWeightKey:            {},
	settings.FraudWeeklyWeightKey:           {},
	settings.FraudMonthlyWeightKey:          {},
	settings.FraudRapidWeightKey:            {},
	settings.FraudRapidWindowSecondsKey:     {},
	settings.FraudDuplicateWindowSecondsKey: {},
	settings.FraudReviewScoreKey:            {},
	settings.FraudFraudulentScoreKey:        {},
	settings.FraudBlockScoreKey:             {},
}

// CreateReward adds a reward. Admins only.
func (o *Orchestrator) CreateReward(ctx context.Context, caller Caller, in stock.RewardInput) (*models.Reward, error) {
	if errAuth := authorizeAdmin(caller); errAuth != nil {
		return nil, errAuth
	}
	reward, err := o.stock.CreateReward(ctx, in)
	if err != nil {
		return nil, err
	}
	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: audit.ActionRewardCreate,
		EntityID:   reward.ID,
		After:      reward,
		Source:     caller.Source,
	})
	return reward, nil
}

// AddVouchers attaches voucher codes to a reward. Admins only.
func (o *Orchestrator) AddVouchers(ctx context.Context, caller Caller, rewardID string, codes []string, count int) (*stock.VoucherBatch, error) {
	if errAuth := authorizeAdmin(caller); errAuth != nil {
		return nil, errAuth
	}
	batch, err := o.stock.AddVouchers(ctx, strings.TrimSpace(rewardID), codes, count)
	if err != nil {
		return nil, err
	}
	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: audit.ActionRewardVouchers,
		EntityID:   batch.After.ID,
		Before:     map[string]any{"stock": batch.Before.Stock},
		After:      map[string]any{"stock": batch.After.Stock, "added": len(batch.Vouchers)},
		Source:     caller.Source,
	})
	return batch, nil
}

// SetRewardActive enables or disables a reward. Admins only.
func (o *Orchestrator) SetRewardActive(ctx context.Context, caller Caller, rewardID string, active bool) (*models.Reward, error) {
	if errAuth := authorizeAdmin(caller); errAuth != nil {
		return nil, errAuth
	}
	before, after, err := o.stock.SetRewardActive(ctx, strings.TrimSpace(rewardID), active)
	if err != nil {
		return nil, err
	}
	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: audit.ActionRewardSetActive,
		EntityID:   after.ID,
		Before:     map[string]any{"is_active": before.IsActive},
		After:      map[string]any{"is_active": after.IsActive},
		Source:     caller.Source,
	})
	return after, nil
}

// UpdateSetting stores a tunable threshold and refreshes the in-memory snapshot. Admins only.
func (o *Orchestrator) UpdateSetting(ctx context.Context, caller Caller, key string, value int64) error {
	if errAuth := authorizeAdmin(caller); errAuth != nil {
		return errAuth
	}
	key = strings.TrimSpace(key)
	if _, ok := tunableKeys[key]; !ok {
		return apperr.ErrInvalidInput.WithMessage("unknown setting %s", key)
	}
	if value < 0 {
		return apperr.ErrInvalidInput.WithMessage("setting %s must not be negative", key)
	}
	previous := settings.Int64(key, -1)
	if errPut := settings.Put(ctx, o.db, key, value); errPut != nil {
		return apperr.Internal(errPut)
	}
	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: audit.ActionSettingsUpdate,
		EntityID:   key,
		Before:     map[string]any{"value": previous},
		After:      map[string]any{"value": value},
		Source:     caller.Source,
	})
	log.WithFields(log.Fields{"key": key, "value": value}).Info("ledger: setting updated")
	return nil
}

// EffectiveSettings returns the thresholds currently in force. Admins only.
func (o *Orchestrator) EffectiveSettings(caller Caller) (map[string]int64, error) {
	if errAuth := authorizeAdmin(caller); errAuth != nil {
		return nil, errAuth
	}
	limits := o.caps.Limits()
	th := o.fraud.Thresholds()
	return map[string]int64{
		settings.DailyEarnLimitKey:              limits.DailyEarn,
		settings.MonthlyRedeemLimitKey:          limits.MonthlyRedeem,
		settings.FraudDailyRedeemLimitKey:       th.DailyRedeemLimit,
		settings.FraudWeeklyRedeemLimitKey:      th.WeeklyRedeemLimit,
		settings.FraudMonthlyRedeemLimitKey:     th.MonthlyRedeemLimit,
		settings.FraudDailyWeightKey:            int64(th.DailyWeight),
		settings.FraudWeeklyWeightKey:           int64(th.WeeklyWeight),
		settings.FraudMonthlyWeightKey:          int64(th.MonthlyWeight),
		settings.FraudRapidWeightKey:            int64(th.RapidWeight),
		settings.FraudRapidWindowSecondsKey:     int64(th.RapidWindow / time.Second),
		settings.FraudDuplicateWindowSecondsKey: int64(th.DuplicateWindow / time.Second),
		settings.FraudReviewScoreKey:            int64(th.ReviewScore),
		settings.FraudFraudulentScoreKey:        int64(th.FraudulentScore),
		settings.FraudBlockScoreKey:             int64(th.BlockScore),
	}, nil
}

// GetAuditTrail returns one page of the audit chain. Admins see every entry; other callers only their own.
func (o *Orchestrator) GetAuditTrail(ctx context.Context, caller Caller, filter audit.Filter, page, limit int) ([]models.AuditEntry, int64, error) {
	if errAuth := authenticated(caller); errAuth != nil {
		return nil, 0, errAuth
	}
	if !caller.IsAdmin {
		filter.ActorID = caller.AccountID
	}
	return o.audit.Trail(ctx, filter, page, limit)
}

// VerifyAuditIntegrity replays the whole audit chain.
func (o *Orchestrator) VerifyAuditIntegrity(ctx context.Context) (*audit.Report, error) {
	return o.audit.Verify(ctx)
}
