package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditrail/creditgate/internal/audit/domain"
	"github.com/creditrail/creditgate/internal/audit/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newAuditTestEnv(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.CreditCheckAudit{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func TestRecordFillsDefaults(t *testing.T) {
	svc, db, _ := newAuditTestEnv(t)
	ctx := context.Background()

	svc.Record(ctx, domain.CreditCheckAudit{
		OAuthProvider: "agenthub",
		ExternalID:    "user-1",
		Outcome:       domain.OutcomeAllowed,
		HasCredit:     true,
	})

	var rows []domain.CreditCheckAudit
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.NotZero(t, rows[0].ID)
	assert.False(t, rows[0].CreatedAt.IsZero())
}

func TestRecordNeverFails(t *testing.T) {
	svc, db, _ := newAuditTestEnv(t)
	ctx := context.Background()

	// Break the table; the recorder must swallow the error.
	require.NoError(t, db.Migrator().DropTable(&domain.CreditCheckAudit{}))

	svc.Record(ctx, domain.CreditCheckAudit{
		OAuthProvider: "agenthub",
		ExternalID:    "user-1",
		Outcome:       domain.OutcomeDenied,
	})
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, db, node := newAuditTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	accountA := node.Generate()
	accountB := node.Generate()

	seed := func(account snowflake.ID, outcome domain.CheckOutcome, at time.Time) {
		id := node.Generate()
		require.NoError(t, db.Create(&domain.CreditCheckAudit{
			ID:            id,
			AccountID:     &account,
			OAuthProvider: "agenthub",
			ExternalID:    account.String(),
			Outcome:       outcome,
			CreatedAt:     at,
		}).Error)
	}

	for i := 0; i < 5; i++ {
		seed(accountA, domain.OutcomeAllowed, base.Add(time.Duration(i)*time.Minute))
	}
	seed(accountA, domain.OutcomeDenied, base.Add(10*time.Minute))
	seed(accountB, domain.OutcomeAllowed, base.Add(20*time.Minute))

	resp, err := svc.List(ctx, domain.ListRequest{AccountID: &accountA})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 6)
	assert.Nil(t, resp.NextCursor)

	resp, err = svc.List(ctx, domain.ListRequest{AccountID: &accountA, Outcome: "denied"})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, domain.OutcomeDenied, resp.Entries[0].Outcome)

	// Newest first, paginated.
	resp, err = svc.List(ctx, domain.ListRequest{AccountID: &accountA, Limit: 4})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 4)
	require.NotNil(t, resp.NextCursor)
	assert.True(t, resp.Entries[0].CreatedAt.After(resp.Entries[1].CreatedAt))

	resp, err = svc.List(ctx, domain.ListRequest{
		AccountID: &accountA,
		Limit:     4,
		Cursor:    resp.NextCursor,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 2)
	assert.Nil(t, resp.NextCursor)
}

func TestListTimeWindow(t *testing.T) {
	svc, db, node := newAuditTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&domain.CreditCheckAudit{
			ID:            node.Generate(),
			OAuthProvider: "agenthub",
			ExternalID:    "user-1",
			Outcome:       domain.OutcomeAllowed,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	resp, err := svc.List(ctx, domain.ListRequest{StartAt: &from, EndAt: &to})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 1)

	_, err = svc.List(ctx, domain.ListRequest{StartAt: &to, EndAt: &from})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}
