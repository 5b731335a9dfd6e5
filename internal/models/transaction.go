package models

import "time"

// TransactionType is the closed set of ledger entry kinds.
type TransactionType string

// Ledger entry kinds.
const (
	TransactionTypeCredit   TransactionType = "credit"
	TransactionTypeDebit    TransactionType = "debit"
	TransactionTypeReversal TransactionType = "reversal"
)

// TransactionTypes lists every TransactionType.
var TransactionTypes = []TransactionType{TransactionTypeCredit, TransactionTypeDebit, TransactionTypeReversal}

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeCredit, TransactionTypeDebit, TransactionTypeReversal:
		return true
	}
	return false
}

// Opposite returns the balance direction that cancels t. Reversals have no opposite.
func (t TransactionType) Opposite() (TransactionType, bool) {
	switch t {
	case TransactionTypeCredit:
		return TransactionTypeDebit, true
	case TransactionTypeDebit:
		return TransactionTypeCredit, true
	case TransactionTypeReversal:
		return "", false
	}
	return "", false
}

// TransactionStatus tracks a ledger entry lifecycle.
type TransactionStatus string

// Ledger entry statuses.
const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// DefaultCurrency is the coin currency code.
const DefaultCurrency = "COIN"

// Transaction is an append-only ledger entry. Only Status may change, and only completed -> reversed.
type Transaction struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`                                                 // UUID.
	AccountID string `gorm:"type:varchar(64);not null;index:idx_transactions_account_created,priority:1"` // Owning account.

	Type             TransactionType   `gorm:"type:varchar(16);not null;index"` // credit, debit or reversal.
	Amount           int64             `gorm:"not null"`                        // Unsigned coin amount.
	Delta            int64             `gorm:"not null"`                        // Signed balance effect.
	Currency         string            `gorm:"type:varchar(16);not null"`       // Currency code.
	ResultingBalance int64             `gorm:"not null"`                        // Balance after applying Delta.
	Status           TransactionStatus `gorm:"type:varchar(16);not null;index"` // pending, completed or reversed.

	ActorID    string  `gorm:"type:varchar(64)"`             // Who initiated the entry.
	Source     string  `gorm:"type:text"`                    // Originating source (game, referral, reward id).
	Reason     string  `gorm:"type:text"`                    // Free-form reason.
	ReversalOf *string `gorm:"type:varchar(36);uniqueIndex"` // Transaction compensated by this entry.

	CreatedAt time.Time `gorm:"not null;index:idx_transactions_account_created,priority:2"` // Server timestamp.
}
