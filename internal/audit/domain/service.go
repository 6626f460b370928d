package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListRequest struct {
	AccountID *snowflake.ID
	Outcome   string
	StartAt   *time.Time
	EndAt     *time.Time
	Limit     int
	Cursor    *Cursor
}

type Cursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

type ListResponse struct {
	Entries    []CreditCheckAudit `json:"entries"`
	NextCursor *Cursor            `json:"next_cursor,omitempty"`
}

type Service interface {
	// Record appends one audit row. Failures are logged, never surfaced to
	// the credit check itself.
	Record(ctx context.Context, entry CreditCheckAudit)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *CreditCheckAudit) error
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]*CreditCheckAudit, error)
}

var (
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidOutcome   = errors.New("invalid_outcome")
)
