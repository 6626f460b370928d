package service

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
	accountrepo "github.com/creditrail/creditgate/internal/account/repository"
	auditdomain "github.com/creditrail/creditgate/internal/audit/domain"
	auditrepo "github.com/creditrail/creditgate/internal/audit/repository"
	auditservice "github.com/creditrail/creditgate/internal/audit/service"
	"github.com/creditrail/creditgate/internal/clock"
	"github.com/creditrail/creditgate/internal/config"
	creditdomain "github.com/creditrail/creditgate/internal/credit/domain"
	ledgerdomain "github.com/creditrail/creditgate/internal/ledger/domain"
	ledgerrepo "github.com/creditrail/creditgate/internal/ledger/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type testEnv struct {
	svc   creditdomain.Service
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&ledgerdomain.Charge{},
		&ledgerdomain.Credit{},
		&auditdomain.CreditCheckAudit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(now)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Config:   testConfig(),
		Accounts: accountrepo.Provide(),
		Ledger:   ledgerrepo.Provide(),
		AuditSvc: auditSvc,
	})

	return &testEnv{svc: svc, db: db, clock: fake, node: node}
}

func testConfig() config.Config {
	return config.Config{
		DefaultFreeUses:       3,
		DefaultDailyFreeLimit: 5,
		DefaultCurrency:       "USD",
		LockWaitTimeout:       5 * time.Second,
	}
}

func testIdentity(external string) accountdomain.AccountIdentity {
	return accountdomain.AccountIdentity{
		OAuthProvider: "agenthub",
		ExternalID:    external,
	}
}

// seedAccount inserts an account row directly with the given balances.
func (e *testEnv) seedAccount(t *testing.T, external string, daily, free, paid int64) *accountdomain.Account {
	t.Helper()

	now := e.clock.Now()
	resetAt := NextUTCMidnight(now)
	acct := &accountdomain.Account{
		ID:                     e.node.Generate(),
		OAuthProvider:          "agenthub",
		ExternalID:             external,
		Status:                 accountdomain.StatusActive,
		PaidCredits:            paid,
		FreeUsesRemaining:      free,
		DailyFreeUsesRemaining: daily,
		DailyFreeUsesLimit:     5,
		DailyFreeUsesResetAt:   &resetAt,
		Currency:               "USD",
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	require.NoError(t, e.db.Create(acct).Error)
	return acct
}

func (e *testEnv) reloadAccount(t *testing.T, external string) *accountdomain.Account {
	t.Helper()

	var acct accountdomain.Account
	require.NoError(t, e.db.
		Where("oauth_provider = ? AND external_id = ?", "agenthub", external).
		First(&acct).Error)
	return &acct
}

func (e *testEnv) countCharges(t *testing.T, accountID snowflake.ID) int64 {
	t.Helper()

	var n int64
	require.NoError(t, e.db.Model(&ledgerdomain.Charge{}).Where("account_id = ?", accountID).Count(&n).Error)
	return n
}
