package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/creditrail/creditgate/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertCharge(ctx context.Context, db *gorm.DB, charge *domain.Charge) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO charges (
			id, account_id, amount_minor, balance_before, balance_after,
			tier, description, idempotency_key, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		charge.ID,
		charge.AccountID,
		charge.AmountMinor,
		charge.BalanceBefore,
		charge.BalanceAfter,
		charge.Tier,
		charge.Description,
		charge.IdempotencyKey,
		charge.Metadata,
		charge.CreatedAt,
	).Error
}

func (r *repo) InsertCredit(ctx context.Context, db *gorm.DB, credit *domain.Credit) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credits (
			id, account_id, amount_minor, balance_before, balance_after,
			transaction_type, external_transaction_id, description, idempotency_key, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		credit.ID,
		credit.AccountID,
		credit.AmountMinor,
		credit.BalanceBefore,
		credit.BalanceAfter,
		credit.TransactionType,
		credit.ExternalTransactionID,
		credit.Description,
		credit.IdempotencyKey,
		credit.CreatedAt,
	).Error
}

func (r *repo) FindChargeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Charge, error) {
	var charge domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, amount_minor, balance_before, balance_after,
			tier, description, idempotency_key, metadata, created_at
		 FROM charges WHERE id = ?`,
		id,
	).Scan(&charge).Error
	if err != nil {
		return nil, err
	}
	if charge.ID == 0 {
		return nil, nil
	}
	return &charge, nil
}

func (r *repo) FindCreditByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Credit, error) {
	var credit domain.Credit
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, amount_minor, balance_before, balance_after,
			transaction_type, external_transaction_id, description, idempotency_key, created_at
		 FROM credits WHERE id = ?`,
		id,
	).Scan(&credit).Error
	if err != nil {
		return nil, err
	}
	if credit.ID == 0 {
		return nil, nil
	}
	return &credit, nil
}

func (r *repo) FindChargeByKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*domain.Charge, error) {
	if key == "" {
		return nil, nil
	}
	var charge domain.Charge
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, amount_minor, balance_before, balance_after,
			tier, description, idempotency_key, metadata, created_at
		 FROM charges WHERE account_id = ? AND idempotency_key = ?`,
		accountID,
		key,
	).Scan(&charge).Error
	if err != nil {
		return nil, err
	}
	if charge.ID == 0 {
		return nil, nil
	}
	return &charge, nil
}

func (r *repo) FindCreditByKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*domain.Credit, error) {
	if key == "" {
		return nil, nil
	}
	var credit domain.Credit
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, amount_minor, balance_before, balance_after,
			transaction_type, external_transaction_id, description, idempotency_key, created_at
		 FROM credits WHERE account_id = ? AND idempotency_key = ?`,
		accountID,
		key,
	).Scan(&credit).Error
	if err != nil {
		return nil, err
	}
	if credit.ID == 0 {
		return nil, nil
	}
	return &credit, nil
}

func (r *repo) ListChargesByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]*domain.Charge, error) {
	var charges []*domain.Charge
	stmt := db.WithContext(ctx).
		Model(&domain.Charge{}).
		Where("account_id = ?", accountID).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repo) ListCreditsByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]*domain.Credit, error) {
	var credits []*domain.Credit
	stmt := db.WithContext(ctx).
		Model(&domain.Credit{}).
		Where("account_id = ?", accountID).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&credits).Error; err != nil {
		return nil, err
	}
	return credits, nil
}
