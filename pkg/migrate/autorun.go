package migrate

import (
	"context"
	"fmt"

	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/db"
	"github.com/simpify/spark-backend/pkg/logger"
)

type autoMigrator interface {
	AutoMigrate(ctx context.Context) error
}

// MaybeRun prepares the SQL schema at startup when SPARK_AUTO_MIGRATE is set.
// Postgres runs goose up; sqlite falls back to GORM AutoMigrate through
// schema.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client, schema autoMigrator) error {
	if !cfg.Store.AutoMigrate || !cfg.Store.IsSQL() {
		return nil
	}

	driver := cfg.Store.NormalizedDriver()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": driver, "dir": DefaultDir})

	if _, err := Dialect(driver); err != nil {
		if schema == nil {
			return fmt.Errorf("auto migrate %s: no schema migrator", driver)
		}
		logg.Info(ctx, "running GORM auto-migrate")
		return schema.AutoMigrate(ctx)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (auto-run)")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "Goose migrations completed")
	return nil
}
