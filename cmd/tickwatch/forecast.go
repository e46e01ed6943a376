package main

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/tick-sightings/internal/forecast"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the monthly forecast model",
	Long: `Fits the forecast model on every stored sighting and writes it to
MODEL_PATH. At least three months of data are required.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
			trainer := forecast.NewTrainer(st, forecast.NewFileStore(cfg.ModelPath), clockwork.NewRealClock(), logger)
			a, err := trainer.Train(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, a)
		})
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast sighting counts for the next three months",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := forecast.NewForecaster(forecast.NewFileStore(cfg.ModelPath), cfg.ModelCacheTTL, logger, metrics)
		out, err := f.Forecast(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(trainCmd, forecastCmd)
}
