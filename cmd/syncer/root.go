package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hotel_sync/internal/adapters/observability"
	"hotel_sync/internal/bootstrap"
	"hotel_sync/internal/domain"
	"hotel_sync/internal/shared"
)

var (
	flagProperties []string
	flagFrom       string
	flagTo         string
	flagDays       int
	flagWorkers    int

	cfg shared.Config
	svc *bootstrap.App
)

// rootCmd is the external trigger for scheduled synchronization runs.
var rootCmd = &cobra.Command{
	Use:   "syncer",
	Short: "Push PMS inventory and rates to the channel manager",
	Long: `syncer runs synchronization for every active property (or the ones
given with --property), a bounded number at a time.

Examples:
  # next SYNC_DAYS days of availability and rates for all active properties
  syncer all

  # one property, explicit window
  syncer rates --property P1 --from 2026-03-01 --to 2026-03-31

  # archive yesterday's audit log to S3
  syncer archive`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = shared.Load()
		log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "syncer")
		a, err := bootstrap.Build(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		svc = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if svc != nil {
			svc.Close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVarP(&flagProperties, "property", "p", nil, "property id (repeatable); default all active properties")
	pf.StringVar(&flagFrom, "from", "", "first date, YYYY-MM-DD")
	pf.StringVar(&flagTo, "to", "", "last date, YYYY-MM-DD")
	pf.IntVar(&flagDays, "days", 0, "window length from today when --from/--to are not set (default SYNC_DAYS)")
	pf.IntVar(&flagWorkers, "workers", 0, "properties processed concurrently (default SYNC_WORKERS)")
}

func window(now time.Time) (domain.DateRange, error) {
	if flagFrom == "" && flagTo == "" {
		days := flagDays
		if days <= 0 {
			days = cfg.SyncDays
		}
		return domain.NextDays(now, days), nil
	}
	if flagFrom == "" || flagTo == "" {
		return domain.DateRange{}, fmt.Errorf("--from and --to must be given together")
	}
	return domain.NewDateRange(flagFrom, flagTo)
}

func workers() int {
	if flagWorkers > 0 {
		return flagWorkers
	}
	return cfg.Workers
}

func targetProperties(ctx context.Context) ([]string, error) {
	if len(flagProperties) > 0 {
		return flagProperties, nil
	}
	props, err := svc.Store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active properties: %w", err)
	}
	ids := make([]string, 0, len(props))
	for _, p := range props {
		ids = append(ids, p.ID)
	}
	return ids, nil
}
