package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

const (
	// nominalPopulation is a fixed per-location population, not derived from data.
	nominalPopulation = 10000
	recencyDays       = 30
	recentBonus       = 0.5
)

// Recency scores locations against the current time.
type Recency struct {
	store  Store
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewRecency creates the recency scorer.
func NewRecency(s Store, clock clockwork.Clock, logger *slog.Logger) *Recency {
	return &Recency{store: s, clock: clock, logger: logger}
}

// Score implements Scorer. The 7 and 30 day windows are whole UTC dates, so
// a sighting on the cutoff date counts regardless of its time of day.
func (r *Recency) Score(ctx context.Context, q Query) (*Assessment, error) {
	if _, err := ParseColor(string(q.Color)); err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	cutoff7 := now.AddDate(0, 0, -7).Format(domain.DateLayout)
	cutoff30 := now.AddDate(0, 0, -30).Format(domain.DateLayout)

	acts, err := r.store.LocationActivity(ctx, cutoff7, cutoff30)
	if err != nil {
		return nil, fmt.Errorf("recency risk: %w", err)
	}
	if len(acts) == 0 {
		return nil, fmt.Errorf("recency risk: no dated sightings: %w", domain.ErrNoData)
	}

	r.logger.Debug("recency risk scored", "locations", len(acts), "now", now)

	return &Assessment{
		Algorithm:     AlgorithmRecency,
		Filter:        filterLabel(q.Color),
		ReferenceDate: now.Format(domain.TimestampLayout),
		Results:       filterAndSort(ScoreRecency(acts, now), q.Color),
	}, nil
}

// ScoreRecency applies the recency formula at time now. Recent[0] and
// Recent[1] of each activity are the 7 and 30 day counts. A last sighting
// that cannot be parsed gives a recency factor of 0. Results are sorted by
// score, highest first.
func ScoreRecency(acts []domain.LocationActivity, now time.Time) []Result {
	results := make([]Result, 0, len(acts))
	for _, a := range acts {
		detail := &RecencyDetail{
			Recent7d:     recentAt(a, 0),
			Recent30d:    recentAt(a, 1),
			SpeciesCount: a.SpeciesCount,
		}
		if last, ok := domain.ParseTimestamp(a.LastSighting); ok {
			days := int(math.Floor(now.Sub(last).Hours() / 24))
			detail.DaysSinceLast = &days
			detail.Factor = float64(max(0, recencyDays-days)) / recencyDays
		}

		score := float64(a.Total)*detail.Factor/nominalPopulation*1000 + float64(detail.Recent7d)*recentBonus
		level, color := classify(score, 5, 2)

		results = append(results, Result{
			Location:       a.Location,
			TotalSightings: a.Total,
			LastSighting:   a.LastSighting,
			RiskScore:      round(score, 2),
			Level:          level,
			Color:          color,
			Recency:        detail,
		})
	}
	return filterAndSort(results, "")
}
