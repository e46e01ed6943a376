package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/tick-sightings/internal/analytics"
	"github.com/couchcryptid/tick-sightings/internal/domain"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate sighting counts",
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Seasonal sighting patterns",
}

func init() {
	trends := statsSubcommand("trends", "Sighting counts per month or ISO week", func(ctx context.Context, cmd *cobra.Command, e *analytics.Engine) (any, error) {
		period, _ := cmd.Flags().GetString("period")
		g, err := domain.ParseGranularity(period)
		if err != nil {
			return nil, err
		}
		return e.TimeTrends(ctx, g)
	})
	trends.Flags().String("period", string(domain.Monthly), "bucket size: monthly or weekly")

	statsCmd.AddCommand(
		statsSubcommand("overview", "Total sightings and the latest sighting date", func(ctx context.Context, _ *cobra.Command, e *analytics.Engine) (any, error) {
			return e.Overview(ctx)
		}),
		statsSubcommand("regions", "Sightings and species per location", func(ctx context.Context, _ *cobra.Command, e *analytics.Engine) (any, error) {
			return e.RegionStats(ctx)
		}),
		statsSubcommand("species", "Sightings and locations per species", func(ctx context.Context, _ *cobra.Command, e *analytics.Engine) (any, error) {
			return e.SpeciesStats(ctx)
		}),
		trends,
	)
	patternsCmd.AddCommand(
		statsSubcommand("seasonal", "Peak months per species", func(ctx context.Context, _ *cobra.Command, e *analytics.Engine) (any, error) {
			return e.SeasonalPatterns(ctx)
		}),
	)
	rootCmd.AddCommand(statsCmd, patternsCmd)
}

type engineQuery func(ctx context.Context, cmd *cobra.Command, e *analytics.Engine) (any, error)

func statsSubcommand(use, short string, query engineQuery) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				caps := analytics.TrendCaps{Monthly: cfg.TrendMonthlyCap, Weekly: cfg.TrendWeeklyCap}
				out, err := query(ctx, cmd, analytics.NewEngine(st, caps))
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}
