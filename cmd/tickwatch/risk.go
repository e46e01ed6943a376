package main

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/tick-sightings/internal/risk"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Score locations by tick risk",
}

var riskAssessmentCmd = &cobra.Command{
	Use:   "assessment",
	Short: "Windowed risk: 90 days before the latest sighting",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRisk(cmd, func(st *store.SQLiteStore) risk.Scorer {
			return risk.NewWindowed(st, logger)
		})
	},
}

var riskScoringCmd = &cobra.Command{
	Use:   "scoring",
	Short: "Recency risk: activity in the last 7 and 30 days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRisk(cmd, func(st *store.SQLiteStore) risk.Scorer {
			return risk.NewRecency(st, clockwork.NewRealClock(), logger)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{riskAssessmentCmd, riskScoringCmd} {
		c.Flags().String("danger-level", "", "only report locations of this color: red, yellow or green")
		riskCmd.AddCommand(c)
	}
	rootCmd.AddCommand(riskCmd)
}

func runRisk(cmd *cobra.Command, scorer func(*store.SQLiteStore) risk.Scorer) error {
	level, _ := cmd.Flags().GetString("danger-level")
	color, err := risk.ParseColor(level)
	if err != nil {
		return err
	}

	return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
		a, err := scorer(st).Score(ctx, risk.Query{Color: color})
		if err != nil {
			return err
		}
		return printJSON(cmd, a)
	})
}
