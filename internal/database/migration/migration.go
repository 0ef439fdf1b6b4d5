package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_listings",
		SQL: `CREATE TABLE IF NOT EXISTS listings (
  id          UUID        PRIMARY KEY,
  position    BIGINT      NOT NULL,
  title       TEXT        NOT NULL CHECK (title <> ''),
  description TEXT        NOT NULL CHECK (description <> ''),
  price       NUMERIC     NOT NULL CHECK (price >= 0),
  category    TEXT        NOT NULL DEFAULT 'outros',
  seller      TEXT        NOT NULL CHECK (seller <> ''),
  contact     TEXT        NOT NULL DEFAULT '',
  condition   TEXT        NOT NULL DEFAULT 'usado',
  images      JSONB       NOT NULL DEFAULT '[]'::jsonb CHECK (jsonb_array_length(images) <= 5),
  created_at  TIMESTAMPTZ NOT NULL,
  active      BOOLEAN     NOT NULL DEFAULT TRUE,
  sold_at     TIMESTAMPTZ NULL,
  CHECK (active = (sold_at IS NULL))
);`,
	},
	{
		Name: "create_index_listings_position",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_position ON listings (position);`,
	},
	{
		Name: "create_index_listings_category",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_listings_category ON listings (category);`,
	},
	{
		Name: "create_index_listings_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings (created_at);`,
	},
}

// EnsureMigrated checks if the 'listings' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, dbHost string) error {
	start := time.Now()
	logger := log.With().Str("component", "database").Str("db_host", dbHost).Logger()

	logger.Info().Str("event", "db_migration_check").Str("status", "starting").Msg("")

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass('public.listings') IS NOT NULL").Scan(&exists); err != nil {
		logger.Error().
			Str("event", "db_migration_failed").
			Str("status", "error").
			Err(err).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Info().
			Str("event", "db_migration_skip").
			Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	logger.Info().Str("event", "db_migration_start").Str("status", "in_progress").Msg("")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error().
				Str("event", "db_migration_failed").
				Str("status", "error").
				Str("migration_step", step.Name).
				Err(err).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logger.Info().
			Str("event", "db_migration_step").
			Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("")
	}

	logger.Info().
		Str("event", "db_migration_success").
		Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("")

	return nil
}
