package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/creditrail/creditgate/internal/account"
	"github.com/creditrail/creditgate/internal/audit"
	"github.com/creditrail/creditgate/internal/cache"
	"github.com/creditrail/creditgate/internal/clock"
	"github.com/creditrail/creditgate/internal/config"
	"github.com/creditrail/creditgate/internal/credit"
	"github.com/creditrail/creditgate/internal/ledger"
	"github.com/creditrail/creditgate/internal/logger"
	"github.com/creditrail/creditgate/internal/metrics"
	"github.com/creditrail/creditgate/internal/migration"
	"github.com/creditrail/creditgate/internal/ratelimit"
	"github.com/creditrail/creditgate/internal/server"
	"github.com/creditrail/creditgate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(NewSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		metrics.Module,
		cache.Module,
		ratelimit.Module,

		// Domain
		account.Module,
		ledger.Module,
		audit.Module,
		credit.Module,

		// HTTP surface
		server.Module,
	)
	app.Run()
}

func NewSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("snowflake node: %v", err)
	}
	return node
}
