package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/tick-sightings/internal/config"
	"github.com/couchcryptid/tick-sightings/internal/observability"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "tickwatch",
	Short: "Tick sighting ingestion, risk scoring and forecasting",
	Long: `Ingests tick sightings from the upstream feed into SQLite and derives
regional statistics, risk levels and a three-month sighting forecast.

Configuration comes from environment variables or ./tickwatch.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg)
		if metrics == nil {
			metrics = observability.NewMetrics()
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the configured database and applies the schema.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// withStore runs fn against an open store and closes it afterwards.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.SQLiteStore) error) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
