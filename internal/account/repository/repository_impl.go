package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/creditrail/creditgate/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const accountColumns = `id, oauth_provider, external_id, wa_id, tenant_id, status, status_reason,
		paid_credits, free_uses_remaining, daily_free_uses_remaining, daily_free_uses_limit,
		daily_free_uses_reset_at, total_uses, currency, created_at, updated_at`

func (r *repo) FindByIdentity(ctx context.Context, db *gorm.DB, identity domain.AccountIdentity) (*domain.Account, error) {
	return r.findByIdentity(ctx, db, identity, false)
}

func (r *repo) LockForUpdate(ctx context.Context, db *gorm.DB, identity domain.AccountIdentity) (*domain.Account, error) {
	return r.findByIdentity(ctx, db, identity, true)
}

func (r *repo) findByIdentity(ctx context.Context, db *gorm.DB, identity domain.AccountIdentity, lock bool) (*domain.Account, error) {
	identity = identity.Normalize()

	// Oldest row wins when legacy duplicates exist for the same key.
	query := `SELECT ` + accountColumns + `
		 FROM accounts
		 WHERE oauth_provider = ? AND external_id = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`
	if lock {
		query += " FOR UPDATE"
	}

	var account domain.Account
	err := db.WithContext(ctx).Raw(query, identity.OAuthProvider, identity.ExternalID).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (
			id, oauth_provider, external_id, wa_id, tenant_id, status, status_reason,
			paid_credits, free_uses_remaining, daily_free_uses_remaining, daily_free_uses_limit,
			daily_free_uses_reset_at, total_uses, currency, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.OAuthProvider,
		account.ExternalID,
		account.WaID,
		account.TenantID,
		account.Status,
		account.StatusReason,
		account.PaidCredits,
		account.FreeUsesRemaining,
		account.DailyFreeUsesRemaining,
		account.DailyFreeUsesLimit,
		account.DailyFreeUsesResetAt,
		account.TotalUses,
		account.Currency,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET
			status = ?, status_reason = ?,
			paid_credits = ?, free_uses_remaining = ?,
			daily_free_uses_remaining = ?, daily_free_uses_limit = ?, daily_free_uses_reset_at = ?,
			total_uses = ?, updated_at = ?
		 WHERE id = ?`,
		account.Status,
		account.StatusReason,
		account.PaidCredits,
		account.FreeUsesRemaining,
		account.DailyFreeUsesRemaining,
		account.DailyFreeUsesLimit,
		account.DailyFreeUsesResetAt,
		account.TotalUses,
		account.UpdatedAt,
		account.ID,
	).Error
}
