package cli

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"lichsu-rewards-service/internal/config"
	pgmigrations "lichsu-rewards-service/internal/infra/postgres/migrations"
	redisstore "lichsu-rewards-service/internal/infra/redis"
)

// NewMigrateCmd applies (or rolls back) database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			configureLogging(cfg)
			if rollback {
				return rollbackMigrations(cmd.Context(), cfg)
			}
			return runMigrationsWithConfig(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")
	return cmd
}

func openBun(cfg config.Config) (*bun.DB, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("database is up to date")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations applied")
	dropCachedQuizzes(ctx, cfg, listQuizIDs(ctx, db))
	return nil
}

func rollbackMigrations(ctx context.Context, cfg config.Config) error {
	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	// Collected first: a rolled back seed removes the rows that name the cached quizzes.
	ids := listQuizIDs(ctx, db)
	group, err := migrator.Rollback(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("nothing to roll back")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations rolled back")
	dropCachedQuizzes(ctx, cfg, ids)
	return nil
}

// listQuizIDs returns the ids in the quizzes table, or nil when the table does not exist yet.
func listQuizIDs(ctx context.Context, db *bun.DB) []string {
	var ids []string
	if err := db.NewSelect().Table("quizzes").Column("id").Scan(ctx, &ids); err != nil {
		log.WithError(err).Debug("quiz ids not listed")
		return nil
	}
	return ids
}

// dropCachedQuizzes clears the Redis content cache for ids so changed content is served on the
// next read. Failures are logged only; cached entries still expire on their own.
func dropCachedQuizzes(ctx context.Context, cfg config.Config, ids []string) {
	client := newRedisClient(cfg)
	if client == nil || len(ids) == 0 {
		return
	}
	defer client.Close()

	cache := redisstore.NewQuizRepository(client, nil, 0)
	dropped := 0
	for _, id := range ids {
		if err := cache.Invalidate(ctx, id); err != nil {
			log.WithError(err).WithField("quiz", id).Warn("cached quiz not dropped")
			continue
		}
		dropped++
	}
	log.WithField("quizzes", dropped).Info("quiz cache cleared")
}
