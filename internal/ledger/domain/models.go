package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tier identifies which credit source funded an action, in fixed priority
// order: daily free, one-time free, paid.
type Tier string

const (
	TierDailyFree Tier = "daily_free"
	TierFree      Tier = "free"
	TierPaid      Tier = "paid"
)

// CreditTransactionType classifies additions to the paid balance.
type CreditTransactionType string

const (
	CreditTypePurchase   CreditTransactionType = "purchase"
	CreditTypeGrant      CreditTransactionType = "grant"
	CreditTypeRefund     CreditTransactionType = "refund"
	CreditTypeAdjustment CreditTransactionType = "adjustment"
)

// Charge is the immutable record of one deduction. BalanceBefore/After track
// the paid balance only: when a free tier funded the action both are equal,
// since charges record that an action occurred independent of which tier
// paid for it.
type Charge struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID      snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_charges_account_key,priority:1" json:"account_id"`
	AmountMinor    int64             `gorm:"not null" json:"amount_minor"`
	BalanceBefore  int64             `gorm:"not null" json:"balance_before"`
	BalanceAfter   int64             `gorm:"not null" json:"balance_after"`
	Tier           Tier              `gorm:"type:text;not null" json:"tier"`
	Description    string            `gorm:"type:text;not null;default:''" json:"description"`
	IdempotencyKey *string           `gorm:"uniqueIndex:ux_charges_account_key,priority:2" json:"idempotency_key,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Charge) TableName() string { return "charges" }

// Credit is the immutable record of one addition to the paid balance.
// BalanceAfter = BalanceBefore + AmountMinor always holds.
type Credit struct {
	ID                    snowflake.ID          `gorm:"primaryKey" json:"id"`
	AccountID             snowflake.ID          `gorm:"not null;index;uniqueIndex:ux_credits_account_key,priority:1" json:"account_id"`
	AmountMinor           int64                 `gorm:"not null" json:"amount_minor"`
	BalanceBefore         int64                 `gorm:"not null" json:"balance_before"`
	BalanceAfter          int64                 `gorm:"not null" json:"balance_after"`
	TransactionType       CreditTransactionType `gorm:"type:text;not null" json:"transaction_type"`
	ExternalTransactionID *string               `json:"external_transaction_id,omitempty"`
	Description           string                `gorm:"type:text;not null;default:''" json:"description"`
	IdempotencyKey        *string               `gorm:"uniqueIndex:ux_credits_account_key,priority:2" json:"idempotency_key,omitempty"`
	CreatedAt             time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Credit) TableName() string { return "credits" }
