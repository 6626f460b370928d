package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists charge and credit rows. Rows are write-once; there are
// no update methods.
type Repository interface {
	InsertCharge(ctx context.Context, db *gorm.DB, charge *Charge) error
	InsertCredit(ctx context.Context, db *gorm.DB, credit *Credit) error

	FindChargeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Charge, error)
	FindCreditByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Credit, error)

	// FindChargeByKey / FindCreditByKey return nil when no row carries the
	// idempotency key for the account.
	FindChargeByKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*Charge, error)
	FindCreditByKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*Credit, error)

	ListChargesByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]*Charge, error)
	ListCreditsByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]*Credit, error)
}
