package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/solatis/eventfilter/internal/core/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the journal database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(ctx context.Context, database *sqlx.DB) error {
			applied, err := db.MigrateUp(ctx, database)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				log.Info().Msg("database schema is up to date")
			}
			for _, id := range applied {
				log.Info().Str("migration", id).Msg("migration applied")
			}
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(ctx context.Context, database *sqlx.DB) error {
			statuses, err := db.MigrateStatus(ctx, database)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, s := range statuses {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

// withDatabase opens the configured journal database for the duration of fn.
func withDatabase(fn func(context.Context, *sqlx.DB) error) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("--db-url or EF_DATABASE_URL required")
	}

	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	return fn(ctx, database)
}
