package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
	auditdomain "github.com/creditrail/creditgate/internal/audit/domain"
	creditdomain "github.com/creditrail/creditgate/internal/credit/domain"
	ledgerdomain "github.com/creditrail/creditgate/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

func TestCheckCreditProvisionsAccount(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	result, err := env.svc.CheckCredit(ctx, testIdentity("user-1"), nil)
	require.NoError(t, err)

	assert.True(t, result.HasCredit)
	assert.False(t, result.PurchaseRequired)
	assert.Equal(t, accountdomain.StatusActive, result.Status)
	assert.Equal(t, int64(5), result.Balances.DailyFreeUses)
	assert.Equal(t, int64(3), result.Balances.FreeUses)
	assert.Equal(t, int64(0), result.Balances.PaidCredits)

	acct := env.reloadAccount(t, "user-1")
	assert.Equal(t, "USD", acct.Currency)
	assert.NotZero(t, acct.ID)

	var audits []auditdomain.CreditCheckAudit
	require.NoError(t, env.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, auditdomain.OutcomeAllowed, audits[0].Outcome)
	assert.True(t, audits[0].HasCredit)
}

func TestCheckCreditNormalizesIdentity(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	first, err := env.svc.CheckCredit(ctx, accountdomain.AccountIdentity{
		OAuthProvider: "AgentHub",
		ExternalID:    "  user-2  ",
	}, nil)
	require.NoError(t, err)

	second, err := env.svc.CheckCredit(ctx, testIdentity("user-2"), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Account.ID, second.Account.ID)
}

func TestCheckCreditDeniedWhenExhausted(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	env.seedAccount(t, "user-3", 0, 0, 0)

	result, err := env.svc.CheckCredit(ctx, testIdentity("user-3"), nil)
	require.NoError(t, err)

	assert.False(t, result.HasCredit)
	assert.True(t, result.PurchaseRequired)

	var audits []auditdomain.CreditCheckAudit
	require.NoError(t, env.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, auditdomain.OutcomeDenied, audits[0].Outcome)
}

func TestCheckCreditSuspended(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	acct := env.seedAccount(t, "user-4", 2, 2, 100)
	require.NoError(t, env.db.Model(acct).
		Updates(map[string]any{"status": "suspended", "status_reason": "chargeback"}).Error)

	result, err := env.svc.CheckCredit(ctx, testIdentity("user-4"), nil)
	require.NoError(t, err)

	assert.False(t, result.HasCredit)
	assert.False(t, result.PurchaseRequired)
	assert.Equal(t, accountdomain.StatusSuspended, result.Status)

	// Balances reported but untouched.
	reloaded := env.reloadAccount(t, "user-4")
	assert.Equal(t, int64(2), reloaded.DailyFreeUsesRemaining)
	assert.Equal(t, int64(100), reloaded.PaidCredits)

	var audits []auditdomain.CreditCheckAudit
	require.NoError(t, env.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, auditdomain.OutcomeSuspended, audits[0].Outcome)
}

func TestCheckCreditInvalidIdentity(t *testing.T) {
	env := newTestEnv(t, testNow)

	_, err := env.svc.CheckCredit(context.Background(), accountdomain.AccountIdentity{}, nil)
	assert.ErrorIs(t, err, creditdomain.ErrInvalidIdentity)
}

func TestCreateChargeTierPriority(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	env.seedAccount(t, "user-5", 2, 1, 100)

	charge := func(key string) creditdomain.ChargeResult {
		result, err := env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
			Identity:       testIdentity("user-5"),
			AmountMinor:    10,
			Currency:       "USD",
			IdempotencyKey: key,
		})
		require.NoError(t, err)
		return result
	}

	first := charge("k1")
	assert.Equal(t, ledgerdomain.TierDailyFree, first.Tier)
	assert.Equal(t, int64(100), first.Charge.BalanceBefore)
	assert.Equal(t, int64(100), first.Charge.BalanceAfter)

	second := charge("k2")
	assert.Equal(t, ledgerdomain.TierDailyFree, second.Tier)

	third := charge("k3")
	assert.Equal(t, ledgerdomain.TierFree, third.Tier)
	assert.Equal(t, int64(100), third.Charge.BalanceAfter)

	fourth := charge("k4")
	assert.Equal(t, ledgerdomain.TierPaid, fourth.Tier)
	assert.Equal(t, int64(100), fourth.Charge.BalanceBefore)
	assert.Equal(t, int64(90), fourth.Charge.BalanceAfter)

	acct := env.reloadAccount(t, "user-5")
	assert.Equal(t, int64(0), acct.DailyFreeUsesRemaining)
	assert.Equal(t, int64(0), acct.FreeUsesRemaining)
	assert.Equal(t, int64(90), acct.PaidCredits)
	assert.Equal(t, int64(4), acct.TotalUses)
	assert.Equal(t, int64(4), env.countCharges(t, acct.ID))
}

func TestCreateChargeInsufficientCredits(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	env.seedAccount(t, "user-6", 0, 0, 50)

	_, err := env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		Identity:    testIdentity("user-6"),
		AmountMinor: 100,
		Currency:    "USD",
	})

	var insufficient *creditdomain.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(50), insufficient.Balance)
	assert.Equal(t, int64(100), insufficient.Required)

	acct := env.reloadAccount(t, "user-6")
	assert.Equal(t, int64(50), acct.PaidCredits)
	assert.Equal(t, int64(0), acct.TotalUses)
	assert.Equal(t, int64(0), env.countCharges(t, acct.ID))
}

func TestCreateChargeIdempotentReplay(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	env.seedAccount(t, "user-7", 0, 0, 100)

	intent := creditdomain.ChargeIntent{
		Identity:       testIdentity("user-7"),
		AmountMinor:    25,
		Currency:       "USD",
		IdempotencyKey: "order-42",
	}

	first, err := env.svc.CreateCharge(ctx, intent)
	require.NoError(t, err)

	_, err = env.svc.CreateCharge(ctx, intent)
	var conflict *creditdomain.IdempotencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.Charge.ID, conflict.ExistingID)

	acct := env.reloadAccount(t, "user-7")
	assert.Equal(t, int64(75), acct.PaidCredits)
	assert.Equal(t, int64(1), acct.TotalUses)
	assert.Equal(t, int64(1), env.countCharges(t, acct.ID))
}

func TestCreateChargeUnknownAccount(t *testing.T) {
	env := newTestEnv(t, testNow)

	_, err := env.svc.CreateCharge(context.Background(), creditdomain.ChargeIntent{
		Identity:    testIdentity("nobody"),
		AmountMinor: 10,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, creditdomain.ErrAccountNotFound)
}

func TestCreateChargeSuspendedAndClosed(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	suspended := env.seedAccount(t, "user-8", 5, 3, 100)
	require.NoError(t, env.db.Model(suspended).
		Updates(map[string]any{"status": "suspended", "status_reason": "fraud review"}).Error)

	_, err := env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		Identity:    testIdentity("user-8"),
		AmountMinor: 10,
		Currency:    "USD",
	})
	var suspendedErr *creditdomain.AccountSuspendedError
	require.ErrorAs(t, err, &suspendedErr)
	assert.Equal(t, "fraud review", suspendedErr.Reason)

	closed := env.seedAccount(t, "user-9", 5, 3, 100)
	require.NoError(t, env.db.Model(closed).Update("status", "closed").Error)

	_, err = env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		Identity:    testIdentity("user-9"),
		AmountMinor: 10,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, creditdomain.ErrAccountClosed)

	for _, external := range []string{"user-8", "user-9"} {
		acct := env.reloadAccount(t, external)
		assert.Equal(t, int64(5), acct.DailyFreeUsesRemaining)
		assert.Equal(t, int64(3), acct.FreeUsesRemaining)
		assert.Equal(t, int64(100), acct.PaidCredits)
		assert.Equal(t, int64(0), env.countCharges(t, acct.ID))
	}
}

func TestCreateChargeCurrencyMismatch(t *testing.T) {
	env := newTestEnv(t, testNow)
	env.seedAccount(t, "user-10", 5, 3, 100)

	_, err := env.svc.CreateCharge(context.Background(), creditdomain.ChargeIntent{
		Identity:    testIdentity("user-10"),
		AmountMinor: 10,
		Currency:    "EUR",
	})

	var integrity *creditdomain.DataIntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestCreateChargeValidation(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	_, err := env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		Identity:    testIdentity("user-11"),
		AmountMinor: 0,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)

	_, err = env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		Identity:    testIdentity("user-11"),
		AmountMinor: -5,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)

	_, err = env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		Identity:    testIdentity("user-11"),
		AmountMinor: 10,
		Currency:    "DOLLARS",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidCurrency)

	_, err = env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		AmountMinor: 10,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidIdentity)
}

func TestConcurrentChargesNoLostUpdates(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	seeded := env.seedAccount(t, "user-12", 0, 0, 1000)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
				Identity:       testIdentity("user-12"),
				AmountMinor:    10,
				Currency:       "USD",
				IdempotencyKey: fmt.Sprintf("job-%d", i),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	acct := env.reloadAccount(t, "user-12")
	assert.Equal(t, int64(1000-workers*10), acct.PaidCredits)
	assert.Equal(t, int64(workers), acct.TotalUses)
	assert.Equal(t, int64(workers), env.countCharges(t, seeded.ID))
}

func TestConcurrentChargesSameKeySingleWinner(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	seeded := env.seedAccount(t, "user-13", 0, 0, 1000)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
				Identity:       testIdentity("user-13"),
				AmountMinor:    10,
				Currency:       "USD",
				IdempotencyKey: "shared-key",
			})
		}(i)
	}
	wg.Wait()

	var won, replayed int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var conflict *creditdomain.IdempotencyConflictError
		require.ErrorAs(t, err, &conflict)
		replayed++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, workers-1, replayed)

	acct := env.reloadAccount(t, "user-13")
	assert.Equal(t, int64(990), acct.PaidCredits)
	assert.Equal(t, int64(1), env.countCharges(t, seeded.ID))
}

func TestAddCreditsProvisionsAndBalances(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	result, err := env.svc.AddCredits(ctx, creditdomain.CreditIntent{
		Identity:    testIdentity("buyer-1"),
		AmountMinor: 500,
		Currency:    "USD",
	})
	require.NoError(t, err)

	assert.Equal(t, ledgerdomain.CreditTypePurchase, result.Credit.TransactionType)
	assert.Equal(t, int64(0), result.Credit.BalanceBefore)
	assert.Equal(t, int64(500), result.Credit.BalanceAfter)
	assert.Equal(t, int64(500), result.Balances.PaidCredits)

	// Provisioned with defaults on the way in.
	assert.Equal(t, int64(5), result.Balances.DailyFreeUses)
	assert.Equal(t, int64(3), result.Balances.FreeUses)
}

func TestAddCreditsIdempotentReplay(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	intent := creditdomain.CreditIntent{
		Identity:       testIdentity("buyer-2"),
		AmountMinor:    300,
		Currency:       "USD",
		IdempotencyKey: "pay-7",
	}

	first, err := env.svc.AddCredits(ctx, intent)
	require.NoError(t, err)

	_, err = env.svc.AddCredits(ctx, intent)
	var conflict *creditdomain.IdempotencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.Credit.ID, conflict.ExistingID)

	acct := env.reloadAccount(t, "buyer-2")
	assert.Equal(t, int64(300), acct.PaidCredits)
}

func TestAddCreditsRejectedWhenNotActive(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	acct := env.seedAccount(t, "buyer-3", 0, 0, 0)
	require.NoError(t, env.db.Model(acct).
		Updates(map[string]any{"status": "suspended", "status_reason": "abuse"}).Error)

	_, err := env.svc.AddCredits(ctx, creditdomain.CreditIntent{
		Identity:    testIdentity("buyer-3"),
		AmountMinor: 100,
		Currency:    "USD",
	})
	var suspendedErr *creditdomain.AccountSuspendedError
	require.ErrorAs(t, err, &suspendedErr)

	require.NoError(t, env.db.Model(acct).Update("status", "closed").Error)
	_, err = env.svc.AddCredits(ctx, creditdomain.CreditIntent{
		Identity:    testIdentity("buyer-3"),
		AmountMinor: 100,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, creditdomain.ErrAccountClosed)

	assert.Equal(t, int64(0), env.reloadAccount(t, "buyer-3").PaidCredits)
}

func TestSetStatusTransitions(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	env.seedAccount(t, "user-14", 5, 3, 0)

	acct, err := env.svc.SetStatus(ctx, testIdentity("user-14"), accountdomain.StatusSuspended, "manual review")
	require.NoError(t, err)
	assert.Equal(t, accountdomain.StatusSuspended, acct.Status)
	assert.Equal(t, "manual review", acct.StatusReason)

	acct, err = env.svc.SetStatus(ctx, testIdentity("user-14"), accountdomain.StatusActive, "")
	require.NoError(t, err)
	assert.Equal(t, accountdomain.StatusActive, acct.Status)

	_, err = env.svc.SetStatus(ctx, testIdentity("user-14"), accountdomain.StatusClosed, "account deleted")
	require.NoError(t, err)

	// Closure is terminal.
	_, err = env.svc.SetStatus(ctx, testIdentity("user-14"), accountdomain.StatusActive, "")
	assert.ErrorIs(t, err, creditdomain.ErrAccountClosed)

	_, err = env.svc.SetStatus(ctx, testIdentity("user-14"), accountdomain.AccountStatus("banana"), "")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, creditdomain.ErrAccountClosed))
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	_, err := env.svc.History(ctx, testIdentity("ghost"), 10)
	assert.ErrorIs(t, err, creditdomain.ErrAccountNotFound)

	_, err = env.svc.AddCredits(ctx, creditdomain.CreditIntent{
		Identity:    testIdentity("user-15"),
		AmountMinor: 200,
		Currency:    "USD",
	})
	require.NoError(t, err)
	_, err = env.svc.CreateCharge(ctx, creditdomain.ChargeIntent{
		Identity:    testIdentity("user-15"),
		AmountMinor: 10,
		Currency:    "USD",
	})
	require.NoError(t, err)

	result, err := env.svc.History(ctx, testIdentity("user-15"), 10)
	require.NoError(t, err)
	assert.Len(t, result.Charges, 1)
	assert.Len(t, result.Credits, 1)
}

func TestGetOrCreateAccountIsStable(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	first, err := env.svc.GetOrCreateAccount(ctx, testIdentity("user-16"))
	require.NoError(t, err)
	second, err := env.svc.GetOrCreateAccount(ctx, testIdentity("user-16"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	var n int64
	require.NoError(t, env.db.Model(&accountdomain.Account{}).
		Where("external_id = ?", "user-16").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGetAccountMiss(t *testing.T) {
	env := newTestEnv(t, testNow)

	acct, err := env.svc.GetAccount(context.Background(), testIdentity("nobody"))
	require.NoError(t, err)
	assert.Nil(t, acct)
}
