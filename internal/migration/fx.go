package migration

import (
	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
	auditdomain "github.com/creditrail/creditgate/internal/audit/domain"
	"github.com/creditrail/creditgate/internal/config"
	ledgerdomain "github.com/creditrail/creditgate/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// mysql/sqlite deployments get the schema from the model tags; the
		// versioned SQL path is postgres-only like the rest of the tooling.
		return conn.AutoMigrate(
			&accountdomain.Account{},
			&ledgerdomain.Charge{},
			&ledgerdomain.Credit{},
			&auditdomain.CreditCheckAudit{},
		)
	}),
)
