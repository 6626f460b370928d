package domain

import (
	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
	ledgerdomain "github.com/creditrail/creditgate/internal/ledger/domain"
)

// TierBalances is a point-in-time snapshot of the three credit sources.
type TierBalances struct {
	DailyFreeUses int64 `json:"daily_free_uses"`
	FreeUses      int64 `json:"free_uses"`
	PaidCredits   int64 `json:"paid_credits"`
}

func BalancesOf(a *accountdomain.Account) TierBalances {
	return TierBalances{
		DailyFreeUses: a.DailyFreeUsesRemaining,
		FreeUses:      a.FreeUsesRemaining,
		PaidCredits:   a.PaidCredits,
	}
}

// CheckResult is the outcome of check_credit.
type CheckResult struct {
	HasCredit        bool                        `json:"has_credit"`
	PurchaseRequired bool                        `json:"purchase_required"`
	Status           accountdomain.AccountStatus `json:"status"`
	Balances         TierBalances                `json:"balances"`
	Account          accountdomain.Account       `json:"account"`
}

// ChargeIntent asks the engine to consume one action's worth of credit.
type ChargeIntent struct {
	Identity       accountdomain.AccountIdentity `json:"identity"`
	AmountMinor    int64                         `json:"amount_minor"`
	Currency       string                        `json:"currency"`
	Description    string                        `json:"description"`
	Metadata       map[string]any                `json:"metadata,omitempty"`
	IdempotencyKey string                        `json:"idempotency_key,omitempty"`
}

// ChargeResult reports a successful deduction and the tier that funded it.
type ChargeResult struct {
	Charge   ledgerdomain.Charge   `json:"charge"`
	Account  accountdomain.Account `json:"account"`
	Tier     ledgerdomain.Tier     `json:"tier"`
	Balances TierBalances          `json:"balances"`
}

// CreditIntent asks the engine to add to the paid balance.
type CreditIntent struct {
	Identity              accountdomain.AccountIdentity      `json:"identity"`
	AmountMinor           int64                              `json:"amount_minor"`
	Currency              string                             `json:"currency"`
	Description           string                             `json:"description"`
	TransactionType       ledgerdomain.CreditTransactionType `json:"transaction_type"`
	ExternalTransactionID string                             `json:"external_transaction_id,omitempty"`
	IdempotencyKey        string                             `json:"idempotency_key,omitempty"`
}

// CreditResult reports a successful addition.
type CreditResult struct {
	Credit   ledgerdomain.Credit   `json:"credit"`
	Account  accountdomain.Account `json:"account"`
	Balances TierBalances          `json:"balances"`
}

// HistoryResult lists recent ledger rows for one account, newest first.
type HistoryResult struct {
	Account accountdomain.Account  `json:"account"`
	Charges []*ledgerdomain.Charge `json:"charges"`
	Credits []*ledgerdomain.Credit `json:"credits"`
}
