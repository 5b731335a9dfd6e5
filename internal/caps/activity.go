package caps

import (
	"errors"
	"time"

	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
)

// SumWindow sums completed entries of kind for accountID with from <= created_at <= to.
func SumWindow(db *gorm.DB, accountID string, kind models.TransactionType, from, to time.Time) (int64, error) {
	var total int64
	errScan := db.Model(&models.Transaction{}).
		Where("account_id = ? AND type = ? AND status = ?", accountID, kind, models.TransactionStatusCompleted).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, errScan
}

// Activity is the recent-activity aggregate of one account, shared by caps and fraud scoring.
type Activity struct {
	AsOf             time.Time
	DailyEarned      int64
	DailyRedeemed    int64
	WeeklyRedeemed   int64
	MonthlyRedeemed  int64
	LastRedemptionAt *time.Time // Newest successful redemption of any reward.
}

// Recent aggregates the month ending at asOf in a single pass over the ledger.
func Recent(db *gorm.DB, accountID string, asOf time.Time) (*Activity, error) {
	dayStart := asOf.Add(-Day)
	weekStart := asOf.Add(-Week)

	var row struct {
		DailyEarned     int64
		DailyRedeemed   int64
		WeeklyRedeemed  int64
		MonthlyRedeemed int64
	}
	errScan := db.Model(&models.Transaction{}).
		Where("account_id = ? AND status = ?", accountID, models.TransactionStatusCompleted).
		Where("created_at >= ? AND created_at <= ?", asOf.Add(-Month), asOf).
		Select(`COALESCE(SUM(CASE WHEN type = ? AND created_at >= ? THEN amount ELSE 0 END), 0) AS daily_earned,
			COALESCE(SUM(CASE WHEN type = ? AND created_at >= ? THEN amount ELSE 0 END), 0) AS daily_redeemed,
			COALESCE(SUM(CASE WHEN type = ? AND created_at >= ? THEN amount ELSE 0 END), 0) AS weekly_redeemed,
			COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS monthly_redeemed`,
			models.TransactionTypeCredit, dayStart,
			models.TransactionTypeDebit, dayStart,
			models.TransactionTypeDebit, weekStart,
			models.TransactionTypeDebit).
		Scan(&row).Error
	if errScan != nil {
		return nil, errScan
	}

	last, errLast := LastRedemption(db, accountID, "", time.Time{})
	if errLast != nil {
		return nil, errLast
	}
	return &Activity{
		AsOf:             asOf,
		DailyEarned:      row.DailyEarned,
		DailyRedeemed:    row.DailyRedeemed,
		WeeklyRedeemed:   row.WeeklyRedeemed,
		MonthlyRedeemed:  row.MonthlyRedeemed,
		LastRedemptionAt: last,
	}, nil
}

// LastRedemption returns the newest successful redemption time for accountID at or after since.
// An empty rewardID matches every reward. The result is nil when none exists.
func LastRedemption(db *gorm.DB, accountID, rewardID string, since time.Time) (*time.Time, error) {
	q := db.Model(&models.Redemption{}).
		Where("account_id = ? AND status = ?", accountID, models.RedemptionStatusSuccess)
	if rewardID != "" {
		q = q.Where("reward_id = ?", rewardID)
	}
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}

	var r models.Redemption
	errFind := q.Select("created_at").Order("created_at DESC").First(&r).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	at := r.CreatedAt.UTC()
	return &at, nil
}
