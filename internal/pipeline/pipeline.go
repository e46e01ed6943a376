package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/tick-sightings/internal/domain"
	"github.com/couchcryptid/tick-sightings/internal/observability"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

// Fetcher returns the raw feed payload.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Store persists one sighting, reporting whether it was new.
type Store interface {
	Insert(ctx context.Context, s domain.Sighting) (store.InsertOutcome, error)
}

// Publisher receives the sightings inserted by a run.
type Publisher interface {
	Publish(ctx context.Context, sightings []domain.Sighting) error
}

// Report summarizes one ingestion run.
type Report struct {
	RunID      string        `json:"run_id"`
	Fetched    int           `json:"fetched"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration_ns"`
}

// Ingester runs fetch-normalize-store cycles.
type Ingester struct {
	fetcher   Fetcher
	store     Store
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithClock sets the clock used for ingested_at stamps and scheduling.
func WithClock(c clockwork.Clock) Option {
	return func(i *Ingester) { i.clock = c }
}

// WithPublisher sets a publisher for newly inserted sightings.
func WithPublisher(p Publisher) Option {
	return func(i *Ingester) { i.publisher = p }
}

// New creates an Ingester. The fetcher may be nil when only Ingest is used.
func New(f Fetcher, s Store, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Ingester {
	i := &Ingester{
		fetcher: f,
		store:   s,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CheckReadiness returns nil once a run has completed successfully.
func (i *Ingester) CheckReadiness(_ context.Context) error {
	if !i.ready.Load() {
		return errors.New("no ingestion run has completed yet")
	}
	return nil
}

// Run fetches the feed and stores every usable record. The fetch and decode
// happen before any write, so a failure there leaves the store untouched and
// the returned error wraps domain.ErrUpstreamFetch.
func (i *Ingester) Run(ctx context.Context) (Report, error) {
	if i.fetcher == nil {
		return Report{}, errors.New("ingester has no fetcher")
	}
	runID := uuid.NewString()
	start := i.clock.Now()

	i.metrics.IngestRunning.Set(1)
	defer i.metrics.IngestRunning.Set(0)

	records, err := i.fetch(ctx)
	if err != nil {
		i.metrics.IngestRuns.WithLabelValues(observability.OutcomeFetchFailed).Inc()
		return Report{RunID: runID, Duration: i.clock.Since(start)}, fmt.Errorf("ingest run %s: %w", runID, err)
	}
	return i.ingest(ctx, runID, start, records)
}

// Ingest stores already decoded records. It is the write half of Run.
func (i *Ingester) Ingest(ctx context.Context, records []domain.RawRecord) (Report, error) {
	return i.ingest(ctx, uuid.NewString(), i.clock.Now(), records)
}

func (i *Ingester) fetch(ctx context.Context) ([]domain.RawRecord, error) {
	payload, err := i.fetcher.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstreamFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstreamFetch, err)
		}
		return nil, err
	}
	return domain.DecodeBatch(payload)
}

func (i *Ingester) ingest(ctx context.Context, runID string, start time.Time, records []domain.RawRecord) (Report, error) {
	report := Report{RunID: runID, Fetched: len(records)}
	i.metrics.RecordsFetched.Add(float64(len(records)))

	var inserted []domain.Sighting
	for _, raw := range records {
		s, ok := domain.Normalize(raw)
		if !ok {
			report.Skipped++
			i.metrics.RecordsSkipped.Inc()
			continue
		}
		s.IngestedAt = i.clock.Now().UTC()

		outcome, err := i.store.Insert(ctx, s)
		if err != nil {
			i.metrics.IngestRuns.WithLabelValues(observability.OutcomeStoreFailed).Inc()
			i.publish(ctx, runID, inserted)
			report.Duration = i.clock.Since(start)
			i.logger.Error("ingest run aborted",
				"run_id", runID,
				"external_id", s.ExternalID,
				"inserted", report.Inserted,
				"error", err,
			)
			return report, fmt.Errorf("ingest run %s: insert %s: %w", runID, s.ExternalID, err)
		}

		switch outcome {
		case store.Inserted:
			report.Inserted++
			i.metrics.SightingsInserted.Inc()
			inserted = append(inserted, s)
		case store.Duplicate:
			report.Duplicates++
			i.metrics.SightingsDuplicate.Inc()
		}
	}

	i.publish(ctx, runID, inserted)

	report.Duration = i.clock.Since(start)
	i.metrics.IngestDuration.Observe(report.Duration.Seconds())
	i.metrics.IngestRuns.WithLabelValues(observability.OutcomeSuccess).Inc()
	i.ready.Store(true)

	i.logger.Info("ingest run complete",
		"run_id", runID,
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)
	return report, nil
}

// publish hands inserted sightings to the publisher. Failures are logged and
// counted; they never fail the run.
func (i *Ingester) publish(ctx context.Context, runID string, sightings []domain.Sighting) {
	if i.publisher == nil || len(sightings) == 0 {
		return
	}
	if err := i.publisher.Publish(ctx, sightings); err != nil {
		i.metrics.PublishErrors.Inc()
		i.logger.Warn("publish sightings failed", "run_id", runID, "count", len(sightings), "error", err)
	}
}

// Schedule runs an ingestion immediately and then every interval until ctx
// is done. A failed run is logged and the next one waits for the next tick.
func (i *Ingester) Schedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return domain.NewValidationError("interval", interval.String(), "must be positive")
	}
	i.logger.Info("ingest schedule started", "interval", interval)

	ticker := i.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := i.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			i.logger.Error("scheduled ingest failed", "error", err)
		}

		select {
		case <-ctx.Done():
			i.logger.Info("ingest schedule stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}
