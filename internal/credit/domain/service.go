package domain

import (
	"context"

	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
)

// Service is the credit consumption engine.
type Service interface {
	// CheckCredit reports whether the identity can fund one more action,
	// provisioning the account on first touch. Every call appends an audit
	// row (best-effort).
	CheckCredit(ctx context.Context, identity accountdomain.AccountIdentity, metadata map[string]any) (CheckResult, error)

	// CreateCharge atomically consumes credit from the highest-priority tier
	// with balance: daily free, then one-time free, then paid.
	CreateCharge(ctx context.Context, intent ChargeIntent) (ChargeResult, error)

	// AddCredits atomically increases the paid balance.
	AddCredits(ctx context.Context, intent CreditIntent) (CreditResult, error)

	GetOrCreateAccount(ctx context.Context, identity accountdomain.AccountIdentity) (accountdomain.Account, error)

	// GetAccount returns nil when the identity is unknown. Never creates.
	GetAccount(ctx context.Context, identity accountdomain.AccountIdentity) (*accountdomain.Account, error)

	// SetStatus transitions the account lifecycle state. Closed accounts
	// stay readable; rows are never deleted.
	SetStatus(ctx context.Context, identity accountdomain.AccountIdentity, status accountdomain.AccountStatus, reason string) (accountdomain.Account, error)

	// History lists recent charges and credits for the account.
	History(ctx context.Context, identity accountdomain.AccountIdentity, limit int) (HistoryResult, error)
}
