package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/postgres/migrations"
	"live-quiz-service/internal/logging"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer logger.Sync()
	return runMigrationsWithConfig(ctx, cfg, logger)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	return Migrate(ctx, cfg.Postgres.URL, logger)
}

// Migrate applies every pending migration to the database at dsn.
func Migrate(ctx context.Context, dsn string, logger *zap.SugaredLogger) error {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Infow("no new migrations")
		return nil
	}
	logger.Infow("migrations applied", "group", group.String())
	return nil
}
