package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet stores the current balances of one account.
type Wallet struct {
	AccountID string `gorm:"type:varchar(64);primaryKey"` // Owning account identifier.

	CoinBalance   int64           `gorm:"not null;default:0"`                     // Spendable coins, never negative.
	CashBalance   decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Cash-equivalent balance.
	TotalEarned   int64           `gorm:"not null;default:0"`                     // Net coins credited.
	TotalRedeemed int64           `gorm:"not null;default:0"`                     // Net coins debited.
	IsActive      bool            `gorm:"not null;default:true"`                  // Whether the wallet accepts mutations.

	CreatedAt   time.Time `gorm:"not null"` // Creation timestamp.
	LastUpdated time.Time `gorm:"not null"` // Last balance mutation.
}
