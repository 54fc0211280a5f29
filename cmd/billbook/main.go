package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billbook/internal/audit"
	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/config"
	"github.com/smallbiznis/billbook/internal/customer"
	"github.com/smallbiznis/billbook/internal/events"
	"github.com/smallbiznis/billbook/internal/invoice"
	"github.com/smallbiznis/billbook/internal/ledger"
	"github.com/smallbiznis/billbook/internal/lock"
	"github.com/smallbiznis/billbook/internal/migration"
	"github.com/smallbiznis/billbook/internal/observability"
	"github.com/smallbiznis/billbook/internal/product"
	"github.com/smallbiznis/billbook/internal/server"
	"github.com/smallbiznis/billbook/pkg/db"
	"go.uber.org/fx"
)

func main() {
	fx.New(options()).Run()
}

func options() fx.Option {
	return fx.Options(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		events.Module,
		migration.Module,
		audit.Module,

		// Domains
		product.Module,
		customer.Module,
		ledger.Module,
		invoice.Module,

		server.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
