package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
	auditdomain "github.com/creditrail/creditgate/internal/audit/domain"
	"github.com/creditrail/creditgate/internal/clock"
	"github.com/creditrail/creditgate/internal/config"
	creditdomain "github.com/creditrail/creditgate/internal/credit/domain"
	ledgerdomain "github.com/creditrail/creditgate/internal/ledger/domain"
	"github.com/creditrail/creditgate/internal/metrics"
	"github.com/creditrail/creditgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errDuplicateKey signals that the insert hit the idempotency unique index;
// the outer call re-fetches the surviving row.
var errDuplicateKey = errors.New("duplicate_idempotency_key")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Accounts accountdomain.Repository
	Ledger   ledgerdomain.Repository
	AuditSvc auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	accounts accountdomain.Repository
	ledger   ledgerdomain.Repository
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics

	defaults accountdomain.Defaults
	lockWait time.Duration
}

func NewService(p Params) creditdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("credit.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		accounts: p.Accounts,
		ledger:   p.Ledger,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
		defaults: accountdomain.Defaults{
			FreeUses:       p.Config.DefaultFreeUses,
			DailyFreeLimit: p.Config.DefaultDailyFreeLimit,
			Currency:       p.Config.DefaultCurrency,
		},
		lockWait: p.Config.LockWaitTimeout,
	}
}

func (s *Service) CheckCredit(ctx context.Context, identity accountdomain.AccountIdentity, metadata map[string]any) (creditdomain.CheckResult, error) {
	identity = identity.Normalize()
	if !identity.Valid() {
		return creditdomain.CheckResult{}, creditdomain.ErrInvalidIdentity
	}

	acct, err := s.getOrCreate(ctx, identity)
	if err != nil {
		return creditdomain.CheckResult{}, err
	}

	if acct.Status != accountdomain.StatusActive {
		outcome := auditdomain.OutcomeSuspended
		if acct.Status == accountdomain.StatusClosed {
			outcome = auditdomain.OutcomeClosed
		}
		s.recordCheck(ctx, identity, acct, outcome, false, false, metadata)
		s.metrics.RecordCreditCheck(string(outcome))
		return creditdomain.CheckResult{
			HasCredit:        false,
			PurchaseRequired: false,
			Status:           acct.Status,
			Balances:         creditdomain.BalancesOf(acct),
			Account:          *acct,
		}, nil
	}

	// A due reset mutates the account, so take the row lock for it; the
	// plain informational read stays lock-free.
	if resetDue(acct, s.clock.Now()) {
		refreshed, err := s.resetUnderLock(ctx, identity)
		if err != nil {
			return creditdomain.CheckResult{}, err
		}
		acct = refreshed
	}

	hasCredit := acct.DailyFreeUsesRemaining > 0 || acct.FreeUsesRemaining > 0 || acct.PaidCredits > 0

	outcome := auditdomain.OutcomeAllowed
	if !hasCredit {
		outcome = auditdomain.OutcomeDenied
	}
	s.recordCheck(ctx, identity, acct, outcome, hasCredit, !hasCredit, metadata)
	s.metrics.RecordCreditCheck(string(outcome))

	return creditdomain.CheckResult{
		HasCredit:        hasCredit,
		PurchaseRequired: !hasCredit,
		Status:           acct.Status,
		Balances:         creditdomain.BalancesOf(acct),
		Account:          *acct,
	}, nil
}

func (s *Service) CreateCharge(ctx context.Context, intent creditdomain.ChargeIntent) (creditdomain.ChargeResult, error) {
	identity := intent.Identity.Normalize()
	if !identity.Valid() {
		return creditdomain.ChargeResult{}, creditdomain.ErrInvalidIdentity
	}
	if intent.AmountMinor <= 0 {
		return creditdomain.ChargeResult{}, creditdomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(intent.Currency))
	if len(currency) != 3 {
		return creditdomain.ChargeResult{}, creditdomain.ErrInvalidCurrency
	}
	key := strings.TrimSpace(intent.IdempotencyKey)

	// Fast-path replay detection. The unique index on
	// (account_id, idempotency_key) is the actual backstop.
	if key != "" {
		existing, _, err := s.findExistingCharge(ctx, identity, key)
		if err != nil {
			return creditdomain.ChargeResult{}, err
		}
		if existing != nil {
			s.metrics.RecordIdempotencyReplay("create_charge")
			return creditdomain.ChargeResult{}, &creditdomain.IdempotencyConflictError{ExistingID: existing.ID}
		}
	}

	lockStart := time.Now()
	var result creditdomain.ChargeResult

	txCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		acct, err := s.accounts.LockForUpdate(txCtx, tx, identity)
		s.metrics.ObserveLockWait(time.Since(lockStart))
		if err != nil {
			return err
		}
		if acct == nil {
			return creditdomain.ErrAccountNotFound
		}

		// Re-check under the lock: a concurrent retry may have landed
		// between the fast path and lock acquisition.
		if key != "" {
			existing, err := s.ledger.FindChargeByKey(txCtx, tx, acct.ID, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return &creditdomain.IdempotencyConflictError{ExistingID: existing.ID}
			}
		}

		switch acct.Status {
		case accountdomain.StatusSuspended:
			return &creditdomain.AccountSuspendedError{Reason: acct.StatusReason}
		case accountdomain.StatusClosed:
			return creditdomain.ErrAccountClosed
		}

		if acct.Currency != currency {
			return &creditdomain.DataIntegrityError{
				Message: fmt.Sprintf("currency mismatch: account %s, intent %s", acct.Currency, currency),
			}
		}

		now := s.clock.Now()
		if applyDailyReset(acct, now) {
			s.metrics.RecordDailyReset()
		}

		// Tier selection: fixed priority, first match wins. Free tiers fund
		// one action each regardless of amount; only the paid tier moves
		// the balance snapshot.
		var tier ledgerdomain.Tier
		balanceBefore := acct.PaidCredits
		switch {
		case acct.DailyFreeUsesRemaining > 0:
			tier = ledgerdomain.TierDailyFree
			acct.DailyFreeUsesRemaining--
		case acct.FreeUsesRemaining > 0:
			tier = ledgerdomain.TierFree
			acct.FreeUsesRemaining--
		case acct.PaidCredits >= intent.AmountMinor:
			tier = ledgerdomain.TierPaid
			acct.PaidCredits -= intent.AmountMinor
		default:
			return &creditdomain.InsufficientCreditsError{
				Balance:  acct.PaidCredits,
				Required: intent.AmountMinor,
			}
		}
		balanceAfter := acct.PaidCredits

		acct.TotalUses++
		acct.UpdatedAt = now
		if err := s.accounts.Update(txCtx, tx, acct); err != nil {
			return err
		}

		charge := &ledgerdomain.Charge{
			ID:            s.genID.Generate(),
			AccountID:     acct.ID,
			AmountMinor:   intent.AmountMinor,
			BalanceBefore: balanceBefore,
			BalanceAfter:  balanceAfter,
			Tier:          tier,
			Description:   strings.TrimSpace(intent.Description),
			Metadata:      datatypes.JSONMap(intent.Metadata),
			CreatedAt:     now,
		}
		if key != "" {
			charge.IdempotencyKey = &key
		}
		if err := s.ledger.InsertCharge(txCtx, tx, charge); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errDuplicateKey
			}
			return err
		}

		// Read-after-write verification. The row lock plus unique indexes
		// are the primary consistency mechanism; this read-back refuses to
		// commit state that does not match what was computed.
		persistedCharge, err := s.ledger.FindChargeByID(txCtx, tx, charge.ID)
		if err != nil {
			return err
		}
		if persistedCharge == nil {
			return &creditdomain.WriteVerificationError{Message: "charge row missing after insert"}
		}
		persistedAcct, err := s.accounts.FindByID(txCtx, tx, acct.ID)
		if err != nil {
			return err
		}
		if persistedAcct == nil {
			return &creditdomain.WriteVerificationError{Message: "account row missing after update"}
		}
		if persistedAcct.PaidCredits != acct.PaidCredits ||
			persistedAcct.FreeUsesRemaining != acct.FreeUsesRemaining ||
			persistedAcct.DailyFreeUsesRemaining != acct.DailyFreeUsesRemaining ||
			persistedAcct.TotalUses != acct.TotalUses {
			return &creditdomain.WriteVerificationError{Message: "persisted balances do not match computed balances"}
		}
		if persistedCharge.BalanceAfter != persistedCharge.BalanceBefore &&
			persistedCharge.BalanceAfter != persistedCharge.BalanceBefore-persistedCharge.AmountMinor {
			return &creditdomain.DataIntegrityError{Message: "charge balance arithmetic mismatch"}
		}

		result = creditdomain.ChargeResult{
			Charge:   *persistedCharge,
			Account:  *persistedAcct,
			Tier:     tier,
			Balances: creditdomain.BalancesOf(persistedAcct),
		}
		return nil
	})
	if err != nil {
		return creditdomain.ChargeResult{}, s.mapChargeErr(ctx, identity, key, err)
	}

	s.metrics.RecordCharge(string(result.Tier))
	s.log.Info("charge created",
		zap.String("account_id", result.Account.ID.String()),
		zap.String("charge_id", result.Charge.ID.String()),
		zap.String("tier", string(result.Tier)),
		zap.Int64("amount_minor", result.Charge.AmountMinor),
	)
	return result, nil
}

func (s *Service) AddCredits(ctx context.Context, intent creditdomain.CreditIntent) (creditdomain.CreditResult, error) {
	identity := intent.Identity.Normalize()
	if !identity.Valid() {
		return creditdomain.CreditResult{}, creditdomain.ErrInvalidIdentity
	}
	if intent.AmountMinor <= 0 {
		return creditdomain.CreditResult{}, creditdomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(intent.Currency))
	if len(currency) != 3 {
		return creditdomain.CreditResult{}, creditdomain.ErrInvalidCurrency
	}
	txType := intent.TransactionType
	if txType == "" {
		txType = ledgerdomain.CreditTypePurchase
	}
	key := strings.TrimSpace(intent.IdempotencyKey)

	// A purchase for an unknown identity provisions the account first.
	if _, err := s.getOrCreate(ctx, identity); err != nil {
		return creditdomain.CreditResult{}, err
	}

	if key != "" {
		acct, err := s.accounts.FindByIdentity(ctx, s.db, identity)
		if err != nil {
			return creditdomain.CreditResult{}, err
		}
		if acct != nil {
			existing, err := s.ledger.FindCreditByKey(ctx, s.db, acct.ID, key)
			if err != nil {
				return creditdomain.CreditResult{}, err
			}
			if existing != nil {
				s.metrics.RecordIdempotencyReplay("add_credits")
				return creditdomain.CreditResult{}, &creditdomain.IdempotencyConflictError{ExistingID: existing.ID}
			}
		}
	}

	lockStart := time.Now()
	var result creditdomain.CreditResult

	txCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		acct, err := s.accounts.LockForUpdate(txCtx, tx, identity)
		s.metrics.ObserveLockWait(time.Since(lockStart))
		if err != nil {
			return err
		}
		if acct == nil {
			return creditdomain.ErrAccountNotFound
		}

		if key != "" {
			existing, err := s.ledger.FindCreditByKey(txCtx, tx, acct.ID, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return &creditdomain.IdempotencyConflictError{ExistingID: existing.ID}
			}
		}

		switch acct.Status {
		case accountdomain.StatusSuspended:
			return &creditdomain.AccountSuspendedError{Reason: acct.StatusReason}
		case accountdomain.StatusClosed:
			return creditdomain.ErrAccountClosed
		}

		if acct.Currency != currency {
			return &creditdomain.DataIntegrityError{
				Message: fmt.Sprintf("currency mismatch: account %s, intent %s", acct.Currency, currency),
			}
		}

		now := s.clock.Now()
		if applyDailyReset(acct, now) {
			s.metrics.RecordDailyReset()
		}

		balanceBefore := acct.PaidCredits
		acct.PaidCredits += intent.AmountMinor
		acct.UpdatedAt = now
		if err := s.accounts.Update(txCtx, tx, acct); err != nil {
			return err
		}

		// balance_after is derived, not re-checked: the identity holds by
		// construction.
		credit := &ledgerdomain.Credit{
			ID:              s.genID.Generate(),
			AccountID:       acct.ID,
			AmountMinor:     intent.AmountMinor,
			BalanceBefore:   balanceBefore,
			BalanceAfter:    balanceBefore + intent.AmountMinor,
			TransactionType: txType,
			Description:     strings.TrimSpace(intent.Description),
			CreatedAt:       now,
		}
		if ext := strings.TrimSpace(intent.ExternalTransactionID); ext != "" {
			credit.ExternalTransactionID = &ext
		}
		if key != "" {
			credit.IdempotencyKey = &key
		}
		if err := s.ledger.InsertCredit(txCtx, tx, credit); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errDuplicateKey
			}
			return err
		}

		persistedCredit, err := s.ledger.FindCreditByID(txCtx, tx, credit.ID)
		if err != nil {
			return err
		}
		if persistedCredit == nil {
			return &creditdomain.WriteVerificationError{Message: "credit row missing after insert"}
		}
		persistedAcct, err := s.accounts.FindByID(txCtx, tx, acct.ID)
		if err != nil {
			return err
		}
		if persistedAcct == nil {
			return &creditdomain.WriteVerificationError{Message: "account row missing after update"}
		}
		if persistedAcct.PaidCredits != acct.PaidCredits {
			return &creditdomain.WriteVerificationError{Message: "persisted paid balance does not match computed balance"}
		}
		if persistedCredit.BalanceAfter != persistedCredit.BalanceBefore+persistedCredit.AmountMinor {
			return &creditdomain.DataIntegrityError{Message: "credit balance arithmetic mismatch"}
		}

		result = creditdomain.CreditResult{
			Credit:   *persistedCredit,
			Account:  *persistedAcct,
			Balances: creditdomain.BalancesOf(persistedAcct),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errDuplicateKey) {
			if acct, ferr := s.accounts.FindByIdentity(ctx, s.db, identity); ferr == nil && acct != nil {
				if existing, ferr := s.ledger.FindCreditByKey(ctx, s.db, acct.ID, key); ferr == nil && existing != nil {
					s.metrics.RecordIdempotencyReplay("add_credits")
					return creditdomain.CreditResult{}, &creditdomain.IdempotencyConflictError{ExistingID: existing.ID}
				}
			}
			return creditdomain.CreditResult{}, &creditdomain.ConcurrencyError{Resource: "credit idempotency key"}
		}
		if isLockContention(err) {
			return creditdomain.CreditResult{}, &creditdomain.ConcurrencyError{Resource: "account row lock"}
		}
		return creditdomain.CreditResult{}, err
	}

	s.metrics.RecordCredit(string(result.Credit.TransactionType))
	s.log.Info("credits added",
		zap.String("account_id", result.Account.ID.String()),
		zap.String("credit_id", result.Credit.ID.String()),
		zap.String("transaction_type", string(result.Credit.TransactionType)),
		zap.Int64("amount_minor", result.Credit.AmountMinor),
	)
	return result, nil
}

func (s *Service) GetOrCreateAccount(ctx context.Context, identity accountdomain.AccountIdentity) (accountdomain.Account, error) {
	identity = identity.Normalize()
	if !identity.Valid() {
		return accountdomain.Account{}, creditdomain.ErrInvalidIdentity
	}
	acct, err := s.getOrCreate(ctx, identity)
	if err != nil {
		return accountdomain.Account{}, err
	}
	return *acct, nil
}

func (s *Service) GetAccount(ctx context.Context, identity accountdomain.AccountIdentity) (*accountdomain.Account, error) {
	identity = identity.Normalize()
	if !identity.Valid() {
		return nil, creditdomain.ErrInvalidIdentity
	}
	return s.accounts.FindByIdentity(ctx, s.db, identity)
}

func (s *Service) SetStatus(ctx context.Context, identity accountdomain.AccountIdentity, status accountdomain.AccountStatus, reason string) (accountdomain.Account, error) {
	identity = identity.Normalize()
	if !identity.Valid() {
		return accountdomain.Account{}, creditdomain.ErrInvalidIdentity
	}
	switch status {
	case accountdomain.StatusActive, accountdomain.StatusSuspended, accountdomain.StatusClosed:
	default:
		return accountdomain.Account{}, fmt.Errorf("invalid account status %q", status)
	}

	var updated accountdomain.Account

	txCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		acct, err := s.accounts.LockForUpdate(txCtx, tx, identity)
		if err != nil {
			return err
		}
		if acct == nil {
			return creditdomain.ErrAccountNotFound
		}
		// Closure is terminal.
		if acct.Status == accountdomain.StatusClosed && status != accountdomain.StatusClosed {
			return creditdomain.ErrAccountClosed
		}

		acct.Status = status
		acct.StatusReason = strings.TrimSpace(reason)
		acct.UpdatedAt = s.clock.Now()
		if err := s.accounts.Update(txCtx, tx, acct); err != nil {
			return err
		}
		updated = *acct
		return nil
	})
	if err != nil {
		if isLockContention(err) {
			return accountdomain.Account{}, &creditdomain.ConcurrencyError{Resource: "account row lock"}
		}
		return accountdomain.Account{}, err
	}

	s.log.Info("account status changed",
		zap.String("account_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) History(ctx context.Context, identity accountdomain.AccountIdentity, limit int) (creditdomain.HistoryResult, error) {
	identity = identity.Normalize()
	if !identity.Valid() {
		return creditdomain.HistoryResult{}, creditdomain.ErrInvalidIdentity
	}
	acct, err := s.accounts.FindByIdentity(ctx, s.db, identity)
	if err != nil {
		return creditdomain.HistoryResult{}, err
	}
	if acct == nil {
		return creditdomain.HistoryResult{}, creditdomain.ErrAccountNotFound
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	charges, err := s.ledger.ListChargesByAccount(ctx, s.db, acct.ID, limit)
	if err != nil {
		return creditdomain.HistoryResult{}, err
	}
	credits, err := s.ledger.ListCreditsByAccount(ctx, s.db, acct.ID, limit)
	if err != nil {
		return creditdomain.HistoryResult{}, err
	}

	return creditdomain.HistoryResult{
		Account: *acct,
		Charges: charges,
		Credits: credits,
	}, nil
}

// getOrCreate resolves the account, provisioning defaults on first touch.
// Creation races resolve by rollback and re-fetch; legacy duplicate rows
// resolve to the oldest.
func (s *Service) getOrCreate(ctx context.Context, identity accountdomain.AccountIdentity) (*accountdomain.Account, error) {
	acct, err := s.accounts.FindByIdentity(ctx, s.db, identity)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		return acct, nil
	}

	now := s.clock.Now()
	fresh := &accountdomain.Account{
		ID:            s.genID.Generate(),
		OAuthProvider: identity.OAuthProvider,
		ExternalID:    identity.ExternalID,
		Status:        accountdomain.StatusActive,

		FreeUsesRemaining:      s.defaults.FreeUses,
		DailyFreeUsesRemaining: s.defaults.DailyFreeLimit,
		DailyFreeUsesLimit:     s.defaults.DailyFreeLimit,
		Currency:               s.defaults.Currency,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if identity.WaID != "" {
		fresh.WaID = &identity.WaID
	}
	if identity.TenantID != "" {
		fresh.TenantID = &identity.TenantID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.accounts.Insert(ctx, tx, fresh)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the creation race; the winner's row is authoritative.
			return s.accounts.FindByIdentity(ctx, s.db, identity)
		}
		return nil, err
	}

	s.metrics.RecordAccountCreated()
	s.log.Info("account provisioned",
		zap.String("account_id", fresh.ID.String()),
		zap.String("oauth_provider", identity.OAuthProvider),
	)
	return fresh, nil
}

// resetUnderLock applies a due daily reset inside the row lock and returns
// the refreshed account.
func (s *Service) resetUnderLock(ctx context.Context, identity accountdomain.AccountIdentity) (*accountdomain.Account, error) {
	var refreshed *accountdomain.Account

	txCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		acct, err := s.accounts.LockForUpdate(txCtx, tx, identity)
		if err != nil {
			return err
		}
		if acct == nil {
			return creditdomain.ErrAccountNotFound
		}
		if applyDailyReset(acct, s.clock.Now()) {
			acct.UpdatedAt = s.clock.Now()
			if err := s.accounts.Update(txCtx, tx, acct); err != nil {
				return err
			}
			s.metrics.RecordDailyReset()
		}
		refreshed = acct
		return nil
	})
	if err != nil {
		if isLockContention(err) {
			return nil, &creditdomain.ConcurrencyError{Resource: "account row lock"}
		}
		return nil, err
	}
	return refreshed, nil
}

func (s *Service) findExistingCharge(ctx context.Context, identity accountdomain.AccountIdentity, key string) (*ledgerdomain.Charge, *accountdomain.Account, error) {
	acct, err := s.accounts.FindByIdentity(ctx, s.db, identity)
	if err != nil {
		return nil, nil, err
	}
	if acct == nil {
		return nil, nil, nil
	}
	existing, err := s.ledger.FindChargeByKey(ctx, s.db, acct.ID, key)
	if err != nil {
		return nil, nil, err
	}
	return existing, acct, nil
}

func (s *Service) mapChargeErr(ctx context.Context, identity accountdomain.AccountIdentity, key string, err error) error {
	if errors.Is(err, errDuplicateKey) {
		if existing, _, ferr := s.findExistingCharge(ctx, identity, key); ferr == nil && existing != nil {
			s.metrics.RecordIdempotencyReplay("create_charge")
			return &creditdomain.IdempotencyConflictError{ExistingID: existing.ID}
		}
		return &creditdomain.ConcurrencyError{Resource: "charge idempotency key"}
	}
	if isLockContention(err) {
		s.metrics.RecordChargeFailure("lock_contention")
		return &creditdomain.ConcurrencyError{Resource: "account row lock"}
	}
	s.metrics.RecordChargeFailure(failureReason(err))
	return err
}

func (s *Service) recordCheck(ctx context.Context, identity accountdomain.AccountIdentity, acct *accountdomain.Account, outcome auditdomain.CheckOutcome, hasCredit, purchaseRequired bool, metadata map[string]any) {
	entry := auditdomain.CreditCheckAudit{
		OAuthProvider:    identity.OAuthProvider,
		ExternalID:       identity.ExternalID,
		Outcome:          outcome,
		HasCredit:        hasCredit,
		PurchaseRequired: purchaseRequired,
		Metadata:         datatypes.JSONMap(metadata),
	}
	if acct != nil {
		id := acct.ID
		entry.AccountID = &id
		entry.DailyFreeUses = acct.DailyFreeUsesRemaining
		entry.FreeUses = acct.FreeUsesRemaining
		entry.PaidCredits = acct.PaidCredits
	}
	s.auditSvc.Record(ctx, entry)
}

func failureReason(err error) string {
	var (
		suspended    *creditdomain.AccountSuspendedError
		insufficient *creditdomain.InsufficientCreditsError
		integrity    *creditdomain.DataIntegrityError
		verification *creditdomain.WriteVerificationError
	)
	switch {
	case errors.Is(err, creditdomain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, creditdomain.ErrAccountClosed):
		return "account_closed"
	case errors.As(err, &suspended):
		return "account_suspended"
	case errors.As(err, &insufficient):
		return "insufficient_credits"
	case errors.As(err, &integrity):
		return "data_integrity"
	case errors.As(err, &verification):
		return "write_verification"
	default:
		return "internal"
	}
}

func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	// PostgreSQL 55P03, MySQL 1205, SQLite busy.
	return strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "could not obtain lock") ||
		strings.Contains(msg, "Lock wait timeout exceeded") ||
		strings.Contains(msg, "database is locked")
}
