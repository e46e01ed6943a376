package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/tick-sightings/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/tick-sightings/internal/adapter/kafka"
	"github.com/couchcryptid/tick-sightings/internal/forecast"
	"github.com/couchcryptid/tick-sightings/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ops server and the ingestion schedule",
	Long: `Serves /healthz, /readyz and /metrics on HTTP_ADDR. Readiness requires the
store and a trained forecast model at MODEL_PATH. When INGEST_INTERVAL
is set, the feed is ingested immediately and then on every interval.
Newly inserted sightings are published to Kafka when KAFKA_ENABLED is true.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	// One forecaster for the process lifetime; readiness probes go through
	// its artifact cache.
	model := forecast.NewForecaster(forecast.NewFileStore(cfg.ModelPath), cfg.ModelCacheTTL, logger, metrics)

	var (
		ing    *pipeline.Ingester
		ingest httpadapter.ReadinessChecker
	)
	if cfg.IngestInterval > 0 {
		var opts []pipeline.Option
		if cfg.KafkaEnabled {
			writer := kafkaadapter.NewWriter(cfg, logger)
			defer closeWriter(writer)
			opts = append(opts, pipeline.WithPublisher(writer))
			logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
		}
		ing = pipeline.New(newFeedClient(), st, logger, metrics, opts...)
		ingest = ing
	} else {
		logger.Info("ingest schedule disabled")
	}

	srv := newOpsServer(cfg.HTTPAddr, logger, st, model, ingest)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if ing != nil {
		g.Go(func() error {
			return ing.Schedule(gctx, cfg.IngestInterval)
		})
	}

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// newOpsServer builds the ops server. Readiness covers the store and the
// forecast model, plus the first ingest run when ingest is non-nil.
func newOpsServer(addr string, log *slog.Logger, st, model, ingest httpadapter.ReadinessChecker) *httpadapter.Server {
	checks := []httpadapter.Check{
		{Name: "store", Checker: st},
		{Name: "model", Checker: model},
	}
	if ingest != nil {
		checks = append(checks, httpadapter.Check{Name: "ingest", Checker: ingest})
	}
	return httpadapter.NewServer(addr, log, checks...)
}
