package users

import (
	"context"
	"fmt"

	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/db"
	"github.com/simpify/spark-backend/pkg/logger"
	"github.com/simpify/spark-backend/pkg/migrate"
	"github.com/simpify/spark-backend/pkg/mongodb"
)

// Open connects the configured store backend and prepares its schema. The
// returned func releases the connection.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Store, func(), error) {
	if cfg.Store.IsSQL() {
		client, err := db.New(ctx, cfg.Store, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap database: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}
		repo := NewRepository(client.DB())
		if err := migrate.MaybeRun(ctx, cfg, logg, client, repo); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return repo, closeFn, nil
	}

	client, err := mongodb.New(ctx, cfg.Store, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap mongo: %w", err)
	}
	closeFn := func() {
		if err := client.Close(context.Background()); err != nil {
			logg.Error(context.Background(), "error closing mongo", err)
		}
	}
	repo := NewMongoRepository(client.Database())
	if err := repo.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}
	return repo, closeFn, nil
}
