package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists accounts. Methods take the *gorm.DB so callers can
// compose them inside a single transaction.
type Repository interface {
	// FindByIdentity returns nil when no account matches. When legacy
	// duplicates exist for the same key it returns the oldest row.
	FindByIdentity(ctx context.Context, db *gorm.DB, identity AccountIdentity) (*Account, error)

	// LockForUpdate behaves like FindByIdentity but takes the row lock,
	// blocking concurrent lockers of the same account.
	LockForUpdate(ctx context.Context, db *gorm.DB, identity AccountIdentity) (*Account, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	Update(ctx context.Context, db *gorm.DB, account *Account) error
}
