package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/tick-sightings/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/tick-sightings/internal/adapter/kafka"
	"github.com/couchcryptid/tick-sightings/internal/domain"
	"github.com/couchcryptid/tick-sightings/internal/pipeline"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion of the feed",
	Long: `Fetches the feed once and stores every new sighting. Records already
stored are counted as duplicates. With --file, a saved feed payload is
ingested instead of fetching.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("file", "", "ingest a saved feed payload instead of fetching")
	rootCmd.AddCommand(ingestCmd)
}

func newFeedClient() *feed.Client {
	return feed.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger)
}

// closeWriter closes a Kafka writer, logging a failed flush.
func closeWriter(w io.Closer) {
	if err := w.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")

	return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
		var opts []pipeline.Option
		if cfg.KafkaEnabled {
			writer := kafkaadapter.NewWriter(cfg, logger)
			defer closeWriter(writer)
			opts = append(opts, pipeline.WithPublisher(writer))
		}

		var (
			report pipeline.Report
			err    error
		)
		if path != "" {
			payload, rerr := os.ReadFile(path)
			if rerr != nil {
				return fmt.Errorf("read feed file: %w", rerr)
			}
			records, derr := domain.DecodeBatch(payload)
			if derr != nil {
				return fmt.Errorf("decode feed file %s: %w", path, derr)
			}
			ing := pipeline.New(nil, st, logger, metrics, opts...)
			report, err = ing.Ingest(ctx, records)
		} else {
			ing := pipeline.New(newFeedClient(), st, logger, metrics, opts...)
			report, err = ing.Run(ctx)
		}

		if errors.Is(err, domain.ErrUpstreamFetch) {
			// Nothing was written; the next run starts from the same state.
			logger.Error("ingest aborted", "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	})
}
