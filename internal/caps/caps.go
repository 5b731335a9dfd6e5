// Package caps enforces rolling per-account earn and redeem limits.
//
// Windows end at the server clock and look back a fixed duration. Only completed
// credit and debit entries count; reversed entries and reversals are ignored.
package caps

import (
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/clock"
	"github.com/router-for-me/CoinLedger/internal/config"
	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/settings"
	"gorm.io/gorm"
)

// Rolling window lengths.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

// Limits are the effective cap values.
type Limits struct {
	DailyEarn     int64
	MonthlyRedeem int64
}

// LimitsFromConfig converts the YAML defaults.
func LimitsFromConfig(cfg config.LimitsConfig) Limits {
	return Limits{DailyEarn: cfg.DailyEarn, MonthlyRedeem: cfg.MonthlyRedeem}
}

// Resolve overlays DB settings on l.
func (l Limits) Resolve() Limits {
	return Limits{
		DailyEarn:     settings.Int64(settings.DailyEarnLimitKey, l.DailyEarn),
		MonthlyRedeem: settings.Int64(settings.MonthlyRedeemLimitKey, l.MonthlyRedeem),
	}
}

// Aggregator answers cap questions against the ledger.
type Aggregator struct {
	clock    clock.Clock
	defaults Limits
}

// NewAggregator builds an Aggregator. defaults apply when no DB setting overrides them.
func NewAggregator(c clock.Clock, defaults Limits) *Aggregator {
	if c == nil {
		c = clock.System{}
	}
	return &Aggregator{clock: c, defaults: defaults}
}

// Limits returns the currently effective limits.
func (a *Aggregator) Limits() Limits {
	return a.defaults.Resolve()
}

// Now returns the server time used as the end of every window.
func (a *Aggregator) Now() time.Time {
	return a.clock.Now()
}

// DailyEarned sums completed credits in the day ending at asOf.
func (a *Aggregator) DailyEarned(db *gorm.DB, accountID string, asOf time.Time) (int64, error) {
	return SumWindow(db, accountID, models.TransactionTypeCredit, asOf.Add(-Day), asOf)
}

// MonthlyRedeemed sums completed debits in the month ending at asOf.
func (a *Aggregator) MonthlyRedeemed(db *gorm.DB, accountID string, asOf time.Time) (int64, error) {
	return SumWindow(db, accountID, models.TransactionTypeDebit, asOf.Add(-Month), asOf)
}

// CheckEarnCap fails with ErrCapExceeded when amount would push the daily earned total past the limit.
func (a *Aggregator) CheckEarnCap(db *gorm.DB, accountID string, amount int64) error {
	limit := a.Limits().DailyEarn
	earned, err := a.DailyEarned(db, accountID, a.clock.Now())
	if err != nil {
		return apperr.Internal(err)
	}
	if amount > limit-earned {
		return apperr.ErrCapExceeded.WithMessage("daily earn limit %d reached: %d earned, %d requested", limit, earned, amount)
	}
	return nil
}

// CheckRedeemCap fails with ErrCapExceeded when amount would push the monthly redeemed total past the limit.
func (a *Aggregator) CheckRedeemCap(db *gorm.DB, accountID string, amount int64) error {
	limit := a.Limits().MonthlyRedeem
	redeemed, err := a.MonthlyRedeemed(db, accountID, a.clock.Now())
	if err != nil {
		return apperr.Internal(err)
	}
	if amount > limit-redeemed {
		return apperr.ErrCapExceeded.WithMessage("monthly redeem limit %d reached: %d redeemed, %d requested", limit, redeemed, amount)
	}
	return nil
}
