package migration

import (
	"github.com/smallbiznis/billbook/internal/config"
	"github.com/smallbiznis/billbook/internal/seed"
	"github.com/smallbiznis/billbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, dbCfg db.Config, cfg config.Config, settings *config.InvoicingConfigHolder, log *zap.Logger) error {
		if err := Run(conn, dbCfg); err != nil {
			return err
		}
		log.Info("schema up to date", zap.String("type", dbCfg.Type))

		if err := seed.EnsureInvoiceSequence(conn, settings.Get().SequenceName); err != nil {
			return err
		}
		if cfg.SeedSampleData && !cfg.IsProduction() {
			return seed.EnsureSampleData(conn, cfg.NodeID)
		}
		return nil
	}),
)
