package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

// Window is the look-back span of the windowed algorithm.
const Window = 90 * 24 * time.Hour

const (
	totalWeight  = 0.6
	recentWeight = 0.4
)

// Windowed scores locations against the newest stored sighting.
type Windowed struct {
	store  Store
	logger *slog.Logger
}

// NewWindowed creates the windowed scorer.
func NewWindowed(s Store, logger *slog.Logger) *Windowed {
	return &Windowed{store: s, logger: logger}
}

// Score implements Scorer. It fails with domain.ErrNoData when no sighting
// carries a usable date.
func (w *Windowed) Score(ctx context.Context, q Query) (*Assessment, error) {
	if _, err := ParseColor(string(q.Color)); err != nil {
		return nil, err
	}

	maxDate, ok, err := w.store.MaxDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("windowed risk: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("windowed risk: no dated sightings: %w", domain.ErrNoData)
	}
	ref, ok := domain.ParseTimestamp(maxDate)
	if !ok {
		return nil, fmt.Errorf("windowed risk: reference date %q is not a timestamp: %w", maxDate, domain.ErrNoData)
	}
	windowStart := ref.Add(-Window).Format(domain.TimestampLayout)

	acts, err := w.store.LocationActivity(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("windowed risk: %w", err)
	}
	if len(acts) == 0 {
		return nil, fmt.Errorf("windowed risk: no sightings available: %w", domain.ErrNoData)
	}

	w.logger.Debug("windowed risk scored", "locations", len(acts), "reference_date", maxDate)

	return &Assessment{
		Algorithm:     AlgorithmWindowed,
		Filter:        filterLabel(q.Color),
		ReferenceDate: maxDate,
		WindowStart:   windowStart,
		WindowEnd:     maxDate,
		Results:       filterAndSort(ScoreWindowed(acts), q.Color),
	}, nil
}

// ScoreWindowed applies the windowed formula. Recent[0] of each activity is
// the in-window count. Normalization spans exactly the given locations.
// Results are sorted by score, highest first.
func ScoreWindowed(acts []domain.LocationActivity) []Result {
	if len(acts) == 0 {
		return nil
	}

	minTotal, maxTotal := acts[0].Total, acts[0].Total
	maxRecent := 0
	for _, a := range acts {
		minTotal = min(minTotal, a.Total)
		maxTotal = max(maxTotal, a.Total)
		maxRecent = max(maxRecent, recentAt(a, 0))
	}
	if maxRecent == 0 {
		maxRecent = 1
	}

	results := make([]Result, 0, len(acts))
	for _, a := range acts {
		recent := recentAt(a, 0)

		var tNorm float64
		if maxTotal > minTotal {
			tNorm = float64(a.Total-minTotal) / float64(maxTotal-minTotal)
		}
		rNorm := float64(recent) / float64(maxRecent)

		score := (tNorm*totalWeight + rNorm*recentWeight) * 100
		score = round(min(100, max(0, score)), 1)
		level, color := classify(score, 70, 40)

		results = append(results, Result{
			Location:       a.Location,
			TotalSightings: a.Total,
			LastSighting:   a.LastSighting,
			RiskScore:      score,
			Level:          level,
			Color:          color,
			Windowed: &WindowedDetail{
				RecentSightings: recent,
				TotalNorm:       tNorm,
				RecentNorm:      rNorm,
			},
		})
	}
	return filterAndSort(results, "")
}

func recentAt(a domain.LocationActivity, i int) int {
	if i < len(a.Recent) {
		return a.Recent[i]
	}
	return 0
}
