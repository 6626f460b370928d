package repository

import (
	"context"
	"strings"

	"github.com/creditrail/creditgate/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.CreditCheckAudit) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_check_audits (
			id, account_id, oauth_provider, external_id, outcome,
			has_credit, purchase_required, daily_free_uses, free_uses, paid_credits,
			metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.AccountID,
		entry.OAuthProvider,
		entry.ExternalID,
		entry.Outcome,
		entry.HasCredit,
		entry.PurchaseRequired,
		entry.DailyFreeUses,
		entry.FreeUses,
		entry.PaidCredits,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]*domain.CreditCheckAudit, error) {
	var entries []*domain.CreditCheckAudit
	stmt := db.WithContext(ctx).Model(&domain.CreditCheckAudit{})

	if req.AccountID != nil {
		stmt = stmt.Where("account_id = ?", *req.AccountID)
	}
	if outcome := strings.TrimSpace(req.Outcome); outcome != "" {
		stmt = stmt.Where("outcome = ?", outcome)
	}
	if req.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", req.StartAt.UTC())
	}
	if req.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", req.EndAt.UTC())
	}
	if req.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			req.Cursor.CreatedAt,
			req.Cursor.CreatedAt,
			req.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
