// Package analytics derives count summaries, trends and seasonal patterns
// from stored sightings.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

// topMonths is how many months a seasonal pattern reports.
const topMonths = 3

// Store is the read side of the sighting store used by the engine.
type Store interface {
	Count(ctx context.Context) (int, error)
	MaxDate(ctx context.Context) (string, bool, error)
	GroupByLocation(ctx context.Context) ([]domain.LocationStats, error)
	GroupBySpecies(ctx context.Context) ([]domain.SpeciesStats, error)
	GroupByTimeBucket(ctx context.Context, g domain.Granularity, limit int) ([]domain.BucketCount, error)
	GroupBySpeciesAndMonth(ctx context.Context) ([]domain.SpeciesMonths, error)
}

// TrendCaps bounds how many buckets TimeTrends returns. Zero means no cap.
type TrendCaps struct {
	Monthly int
	Weekly  int
}

// DefaultTrendCaps keeps two years of months or one year of weeks.
var DefaultTrendCaps = TrendCaps{Monthly: 24, Weekly: 52}

// SeasonalPattern is the peak-season summary of one species.
type SeasonalPattern struct {
	Species     string              `json:"species"`
	PeakMonth   string              `json:"peak_month"`
	PeakCount   int                 `json:"peak_count"`
	MonthlyData []domain.MonthCount `json:"monthly_data"`
}

// Trends is a bucketed count series.
type Trends struct {
	Period domain.Granularity   `json:"period"`
	Data   []domain.BucketCount `json:"data"`
}

// Overview is the store-wide summary.
type Overview struct {
	TotalSightings int    `json:"total_sightings"`
	LatestSighting string `json:"latest_sighting,omitempty"`
}

// Engine answers aggregate queries. It holds no state besides its store.
type Engine struct {
	store Store
	caps  TrendCaps
}

// NewEngine creates an Engine over s.
func NewEngine(s Store, caps TrendCaps) *Engine {
	return &Engine{store: s, caps: caps}
}

// RegionStats counts sightings per location, largest first.
func (e *Engine) RegionStats(ctx context.Context) ([]domain.LocationStats, error) {
	stats, err := e.store.GroupByLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("region stats: %w", err)
	}
	return stats, nil
}

// SpeciesStats counts sightings per species, largest first.
func (e *Engine) SpeciesStats(ctx context.Context) ([]domain.SpeciesStats, error) {
	stats, err := e.store.GroupBySpecies(ctx)
	if err != nil {
		return nil, fmt.Errorf("species stats: %w", err)
	}
	return stats, nil
}

// TimeTrends counts dated sightings per month or ISO week, most recent
// first, truncated to the configured cap.
func (e *Engine) TimeTrends(ctx context.Context, g domain.Granularity) (*Trends, error) {
	limit := e.caps.Monthly
	switch g {
	case domain.Monthly:
	case domain.Weekly:
		limit = e.caps.Weekly
	default:
		return nil, domain.NewValidationError("period", string(g), "must be monthly or weekly")
	}

	buckets, err := e.store.GroupByTimeBucket(ctx, g, limit)
	if err != nil {
		return nil, fmt.Errorf("time trends: %w", err)
	}
	return &Trends{Period: g, Data: buckets}, nil
}

// SeasonalPatterns reports, per species, the months with the most sightings
// across all years. Months with equal counts keep calendar order.
func (e *Engine) SeasonalPatterns(ctx context.Context) ([]SeasonalPattern, error) {
	grouped, err := e.store.GroupBySpeciesAndMonth(ctx)
	if err != nil {
		return nil, fmt.Errorf("seasonal patterns: %w", err)
	}

	out := make([]SeasonalPattern, 0, len(grouped))
	for _, g := range grouped {
		if len(g.Months) == 0 {
			continue
		}
		months := rankMonths(g.Months)
		out = append(out, SeasonalPattern{
			Species:     g.Species,
			PeakMonth:   months[0].Month,
			PeakCount:   months[0].Count,
			MonthlyData: months[:min(topMonths, len(months))],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Species < out[j].Species })
	return out, nil
}

// rankMonths sorts a copy by count descending, then calendar order.
func rankMonths(in []domain.MonthCount) []domain.MonthCount {
	months := append([]domain.MonthCount(nil), in...)
	sort.SliceStable(months, func(i, j int) bool {
		if months[i].Count != months[j].Count {
			return months[i].Count > months[j].Count
		}
		return calendarIndex(months[i].Month) < calendarIndex(months[j].Month)
	})
	return months
}

func calendarIndex(name string) int {
	m, ok := domain.MonthFromName(name)
	if !ok {
		return 13
	}
	return int(m)
}

// Overview returns the total sighting count and the latest stored date.
func (e *Engine) Overview(ctx context.Context) (*Overview, error) {
	n, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	latest, _, err := e.store.MaxDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	return &Overview{TotalSightings: n, LatestSighting: latest}, nil
}
