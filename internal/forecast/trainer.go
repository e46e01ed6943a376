package forecast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

// SeriesStore supplies the chronological monthly series.
type SeriesStore interface {
	MonthlySeries(ctx context.Context) ([]domain.MonthlyCount, error)
}

// Trainer fits the model over the whole store and persists it.
type Trainer struct {
	series    SeriesStore
	artifacts ArtifactStore
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewTrainer creates a Trainer.
func NewTrainer(series SeriesStore, artifacts ArtifactStore, clock clockwork.Clock, logger *slog.Logger) *Trainer {
	return &Trainer{series: series, artifacts: artifacts, clock: clock, logger: logger}
}

// Train fits and saves a new artifact. Fewer than MinSeriesLength monthly
// buckets returns domain.ErrInsufficientData and leaves any existing
// artifact in place.
func (t *Trainer) Train(ctx context.Context) (*Artifact, error) {
	series, err := t.series.MonthlySeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load monthly series: %w", err)
	}

	a, err := Fit(series)
	if err != nil {
		return nil, err
	}
	a.TrainedAt = t.clock.Now().UTC()

	if err := t.artifacts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}

	t.logger.Info("forecast model trained",
		"series_length", a.SeriesLength,
		"last_year", a.LastYear,
		"last_month", a.LastMonth,
		"coefficients", a.Coefficients,
	)
	return a, nil
}
