package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountStatus is the lifecycle state of an account. Accounts are never
// hard-deleted; closure is a status transition.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusClosed    AccountStatus = "closed"
)

// AccountIdentity is the caller-supplied identity tuple. Only
// (OAuthProvider, ExternalID) participates in the unique key; WaID and
// TenantID are stored verbatim for downstream reporting.
type AccountIdentity struct {
	OAuthProvider string `json:"oauth_provider"`
	ExternalID    string `json:"external_id"`
	WaID          string `json:"wa_id,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
}

func (i AccountIdentity) Normalize() AccountIdentity {
	return AccountIdentity{
		OAuthProvider: strings.ToLower(strings.TrimSpace(i.OAuthProvider)),
		ExternalID:    strings.TrimSpace(i.ExternalID),
		WaID:          strings.TrimSpace(i.WaID),
		TenantID:      strings.TrimSpace(i.TenantID),
	}
}

func (i AccountIdentity) Valid() bool {
	return i.OAuthProvider != "" && i.ExternalID != ""
}

// Account is one caller's balances across the three credit tiers.
type Account struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	OAuthProvider string        `gorm:"column:oauth_provider;not null;uniqueIndex:ux_accounts_identity,priority:1" json:"oauth_provider"`
	ExternalID    string        `gorm:"not null;uniqueIndex:ux_accounts_identity,priority:2" json:"external_id"`
	WaID          *string       `gorm:"column:wa_id" json:"wa_id,omitempty"`
	TenantID      *string       `json:"tenant_id,omitempty"`
	Status        AccountStatus `gorm:"type:text;not null;default:'active'" json:"status"`
	StatusReason  string        `gorm:"type:text;not null;default:''" json:"status_reason,omitempty"`

	PaidCredits            int64      `gorm:"not null;default:0" json:"paid_credits"`
	FreeUsesRemaining      int64      `gorm:"not null;default:0" json:"free_uses_remaining"`
	DailyFreeUsesRemaining int64      `gorm:"not null;default:0" json:"daily_free_uses_remaining"`
	DailyFreeUsesLimit     int64      `gorm:"not null" json:"daily_free_uses_limit"`
	DailyFreeUsesResetAt   *time.Time `json:"daily_free_uses_reset_at,omitempty"`
	TotalUses              int64      `gorm:"not null;default:0" json:"total_uses"`
	Currency               string     `gorm:"type:text;not null" json:"currency"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

func (a *Account) Identity() AccountIdentity {
	id := AccountIdentity{
		OAuthProvider: a.OAuthProvider,
		ExternalID:    a.ExternalID,
	}
	if a.WaID != nil {
		id.WaID = *a.WaID
	}
	if a.TenantID != nil {
		id.TenantID = *a.TenantID
	}
	return id
}

// Defaults describes the allotments applied on first-touch provisioning.
type Defaults struct {
	FreeUses       int64
	DailyFreeLimit int64
	Currency       string
}
