package seed

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(runDemoSeed),
)

func runDemoSeed(cfg config.Config, conn *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
	if !cfg.SeedDemo {
		return nil
	}
	if cfg.IsProduction() {
		log.Warn("demo seed skipped in production")
		return nil
	}

	var managerID snowflake.ID
	if cfg.SeedManagerID != "" {
		id, err := snowflake.ParseString(cfg.SeedManagerID)
		if err != nil {
			return err
		}
		managerID = id
	}

	demo, err := EnsureDemoResidence(context.Background(), conn, node, managerID, clk.Now())
	if err != nil {
		return err
	}
	log.Info("demo residence seeded",
		zap.String("residence_id", demo.ResidenceID.String()),
		zap.Int("units", len(demo.UnitIDs)),
	)
	return nil
}
