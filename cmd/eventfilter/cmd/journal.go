package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/solatis/eventfilter/internal/core/db"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect recorded derived events",
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the newest derived events",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}

		return withJournal(func(ctx context.Context, j *db.Journal) error {
			records, err := j.Recent(ctx, eventType, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range records {
				entry := map[string]any{
					"id":           r.ID,
					"type":         r.Type,
					"name":         r.RuleName,
					"context":      nil,
					"originalType": r.OriginalType,
					"at":           r.EmittedAt().Format(time.RFC3339Nano),
					"detail":       json.RawMessage(r.Payload),
				}
				if r.Context.Valid {
					entry["context"] = r.Context.String
				}
				if err := enc.Encode(entry); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var journalCountsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Count derived events per type",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(func(ctx context.Context, j *db.Journal) error {
			counts, err := j.Counts(ctx)
			if err != nil {
				return err
			}
			for _, c := range counts {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", c.Total, c.Type)
			}
			return nil
		})
	},
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete derived events older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		age, _ := cmd.Flags().GetDuration("older-than")
		if age <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		return withJournal(func(ctx context.Context, j *db.Journal) error {
			removed, err := j.Prune(ctx, time.Now().Add(-age))
			if err != nil {
				return err
			}
			log.Info().Int64("removed", removed).Dur("older_than", age).Msg("journal pruned")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRecentCmd, journalCountsCmd, journalPruneCmd)
	journalRecentCmd.Flags().String("type", "", "only this derived event type")
	journalRecentCmd.Flags().Int("limit", 20, "maximum number of events")
	journalPruneCmd.Flags().Duration("older-than", 7*24*time.Hour, "age cutoff")
}

func withJournal(fn func(context.Context, *db.Journal) error) error {
	return withDatabase(func(ctx context.Context, database *sqlx.DB) error {
		j, err := db.NewJournal(database, log.Logger)
		if err != nil {
			return err
		}
		return fn(ctx, j)
	})
}
