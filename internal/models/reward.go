package models

import (
	"fmt"
	"time"
)

// Reward is a redeemable item with a bounded stock.
type Reward struct {
	ID       string `gorm:"type:varchar(36);primaryKey"` // UUID.
	Name     string `gorm:"type:text;not null"`          // Display name.
	CoinCost int64  `gorm:"not null"`                    // Coins debited per redemption.
	Stock    int64  `gorm:"not null;default:0"`          // Remaining units.
	IsActive bool   `gorm:"not null"`                    // Whether redemptions are accepted.

	RequiresVoucher bool `gorm:"not null;default:false"` // Each redemption must bind a voucher.

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Voucher is a one-time code bound to a reward.
type Voucher struct {
	ID       string `gorm:"type:varchar(36);primaryKey"`                                             // UUID.
	RewardID string `gorm:"type:varchar(36);not null;index:idx_vouchers_reward_redeemed,priority:1"` // Owning reward.
	Code     string `gorm:"type:varchar(128);not null;uniqueIndex"`                                  // Redeemable code.

	Redeemed     bool    `gorm:"not null;default:false;index:idx_vouchers_reward_redeemed,priority:2"` // Set once, never cleared.
	RedeemedBy   *string `gorm:"type:varchar(64);index"`                                               // Account that received it.
	RedemptionID *string `gorm:"type:varchar(36)"`                                                     // Redemption that bound it.

	CreatedAt  time.Time  `gorm:"not null"`
	RedeemedAt *time.Time // Binding time.
}

// RedemptionStatus tracks a redemption attempt.
type RedemptionStatus string

// Redemption statuses.
const (
	RedemptionStatusPending  RedemptionStatus = "pending"
	RedemptionStatusSuccess  RedemptionStatus = "success"
	RedemptionStatusFailed   RedemptionStatus = "failed"
	RedemptionStatusReversed RedemptionStatus = "reversed"
)

// Redemption records one exchange of coins for a reward.
type Redemption struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`                                               // UUID.
	AccountID string `gorm:"type:varchar(64);not null;index:idx_redemptions_account_reward,priority:1"` // Redeeming account.
	RewardID  string `gorm:"type:varchar(36);not null;index:idx_redemptions_account_reward,priority:2"` // Redeemed reward.

	CoinsSpent    int64            `gorm:"not null;default:0"`              // Coins debited.
	Status        RedemptionStatus `gorm:"type:varchar(16);not null;index"` // pending, success, failed or reversed.
	VoucherCode   *string          `gorm:"type:varchar(128)"`               // Bound voucher, if any.
	TransactionID *string          `gorm:"type:varchar(36);index"`          // Debit transaction, on success.
	FailureCode   string           `gorm:"type:varchar(64)"`                // Error code, on failure.

	CreatedAt time.Time `gorm:"not null;index:idx_redemptions_account_reward,priority:3"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Transition moves the redemption along pending -> success | failed, and success -> reversed
// once its debit has been reversed.
func (r *Redemption) Transition(next RedemptionStatus) error {
	switch {
	case r.Status == RedemptionStatusPending && (next == RedemptionStatusSuccess || next == RedemptionStatusFailed):
	case r.Status == RedemptionStatusSuccess && next == RedemptionStatusReversed:
	default:
		return fmt.Errorf("redemption %s: cannot move from %s to %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}
