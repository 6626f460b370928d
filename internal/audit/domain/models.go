package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CheckOutcome labels the result of one credit check for fraud/analytics.
type CheckOutcome string

const (
	OutcomeAllowed   CheckOutcome = "allowed"
	OutcomeDenied    CheckOutcome = "denied"
	OutcomeSuspended CheckOutcome = "suspended"
	OutcomeClosed    CheckOutcome = "closed"
)

// CreditCheckAudit is one append-only row per credit check, including
// denials. Not part of correctness invariants; writes are best-effort.
type CreditCheckAudit struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	AccountID     *snowflake.ID `gorm:"index" json:"account_id,omitempty"`
	OAuthProvider string        `gorm:"column:oauth_provider;not null" json:"oauth_provider"`
	ExternalID    string        `gorm:"not null" json:"external_id"`
	Outcome       CheckOutcome  `gorm:"type:text;not null;index" json:"outcome"`

	HasCredit        bool  `gorm:"not null" json:"has_credit"`
	PurchaseRequired bool  `gorm:"not null" json:"purchase_required"`
	DailyFreeUses    int64 `gorm:"not null" json:"daily_free_uses"`
	FreeUses         int64 `gorm:"not null" json:"free_uses"`
	PaidCredits      int64 `gorm:"not null" json:"paid_credits"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (CreditCheckAudit) TableName() string { return "credit_check_audits" }
