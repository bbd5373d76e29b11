package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hotel_sync/internal/app"
	"hotel_sync/internal/domain"
)

type syncOp func(ctx context.Context, propertyID string, r domain.DateRange) (app.Result, error)

// syncCommand builds a subcommand that runs ops in order for each property.
func syncCommand(use, short string, ops func() []syncOp) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := window(time.Now())
			if err != nil {
				return err
			}
			ids, err := targetProperties(ctx)
			if err != nil {
				return err
			}
			log.Info().Str("cmd", use).Int("properties", len(ids)).
				Str("from", r.From.String()).Str("to", r.To.String()).Int("workers", workers()).
				Msg("syncer starting")
			return fanOut(ctx, ids, workers(), func(ctx context.Context, id string) error {
				for _, op := range ops() {
					if _, err := op(ctx, id, r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

var flagArchiveDate string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy one UTC day of audit entries per property to S3",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		day := domain.DateOf(time.Now().UTC()).AddDays(-1)
		if flagArchiveDate != "" {
			d, err := domain.ParseDate(flagArchiveDate)
			if err != nil {
				return err
			}
			day = d
		}
		ids, err := targetProperties(ctx)
		if err != nil {
			return err
		}
		return fanOut(ctx, ids, workers(), func(ctx context.Context, id string) error {
			key, n, err := svc.Audit.ArchiveDay(ctx, id, day)
			if err != nil {
				return err
			}
			log.Info().Str("property", id).Str("key", key).Int("entries", n).Msg("audit day archived")
			return nil
		})
	},
}

func init() {
	archiveCmd.Flags().StringVar(&flagArchiveDate, "date", "", "day to archive, YYYY-MM-DD (default yesterday, UTC)")

	rootCmd.AddCommand(
		syncCommand("all", "Sync availability then rates", func() []syncOp {
			return []syncOp{svc.Engine.SyncInventory, svc.Engine.SyncRates}
		}),
		syncCommand("inventory", "Sync availability only", func() []syncOp {
			return []syncOp{svc.Engine.SyncInventory}
		}),
		syncCommand("rates", "Sync rates only", func() []syncOp {
			return []syncOp{svc.Engine.SyncRates}
		}),
		syncCommand("initial", "Run the initial synchronization for configured properties", func() []syncOp {
			return []syncOp{svc.Engine.InitialSync}
		}),
		archiveCmd,
	)
}
