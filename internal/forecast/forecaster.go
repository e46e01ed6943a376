package forecast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/couchcryptid/tick-sightings/internal/domain"
	"github.com/couchcryptid/tick-sightings/internal/observability"
)

const artifactKey = "artifact"

// Forecaster serves predictions from the persisted artifact. A loaded
// artifact is cached for ttl, so a retrain becomes visible within one TTL.
// Failed loads are not cached.
type Forecaster struct {
	artifacts ArtifactStore
	cache     *cache.Cache
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewForecaster creates a Forecaster that caches the loaded artifact for ttl.
func NewForecaster(artifacts ArtifactStore, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Forecaster {
	return &Forecaster{
		artifacts: artifacts,
		cache:     cache.New(ttl, 2*ttl),
		logger:    logger,
		metrics:   metrics,
	}
}

// Forecast returns the next Horizon months of predicted counts. Without a
// usable artifact it returns domain.ErrModelUnavailable.
func (f *Forecaster) Forecast(ctx context.Context) (*Forecast, error) {
	a, err := f.artifact(ctx)
	if err != nil {
		return nil, err
	}
	return Project(a), nil
}

// CheckReadiness reports whether a usable artifact is available. Probes go
// through the cache, so the artifact file is read at most once per TTL
// while it is valid.
func (f *Forecaster) CheckReadiness(ctx context.Context) error {
	_, err := f.artifact(ctx)
	return err
}

func (f *Forecaster) artifact(ctx context.Context) (*Artifact, error) {
	if v, ok := f.cache.Get(artifactKey); ok {
		return v.(*Artifact), nil
	}

	a, err := f.artifacts.Load(ctx)
	if err != nil {
		outcome := observability.OutcomeError
		if errors.Is(err, domain.ErrModelUnavailable) {
			outcome = observability.OutcomeUnavailable
		}
		f.metrics.ModelLoads.WithLabelValues(outcome).Inc()
		f.logger.Warn("forecast model load failed", "error", err)
		return nil, err
	}

	f.metrics.ModelLoads.WithLabelValues(observability.OutcomeSuccess).Inc()
	f.cache.SetDefault(artifactKey, a)
	f.logger.Debug("forecast model loaded", "trained_at", a.TrainedAt)
	return a, nil
}
