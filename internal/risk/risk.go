// Package risk scores per-location tick activity.
//
// Two independent algorithms are provided and intentionally kept apart:
//
//	Windowed  min/max normalized blend of all-time and last-90-days counts,
//	          anchored at the newest stored sighting. Scores run 0..100.
//	Recency   population-normalized count damped by days since the last
//	          sighting, plus a bonus for the last 7 days, anchored at the
//	          current time. Scores are unbounded.
//
// They answer different questions and routinely disagree.
package risk

import (
	"context"
	"sort"
	"strconv"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

// Algorithm names reported in an Assessment.
const (
	AlgorithmWindowed = "windowed"
	AlgorithmRecency  = "recency"
)

// Level is a risk classification.
type Level string

const (
	High   Level = "HIGH"
	Medium Level = "MEDIUM"
	Low    Level = "LOW"
)

// Color is the display token paired with a Level.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
)

// ParseColor accepts red, yellow, green, or "" for no filter.
func ParseColor(s string) (Color, error) {
	switch c := Color(s); c {
	case "", Red, Yellow, Green:
		return c, nil
	default:
		return "", domain.NewValidationError("danger_level", s, "must be red, yellow or green")
	}
}

// Store is the read side of the sighting store used by the scorers.
type Store interface {
	MaxDate(ctx context.Context) (string, bool, error)
	LocationActivity(ctx context.Context, cutoffs ...string) ([]domain.LocationActivity, error)
}

// Query restricts an assessment. An empty Color returns every location.
type Query struct {
	Color Color
}

// Scorer computes a risk assessment over all locations.
type Scorer interface {
	Score(ctx context.Context, q Query) (*Assessment, error)
}

// Assessment is the scored, sorted result of one scoring call.
type Assessment struct {
	Algorithm     string   `json:"algorithm"`
	Filter        string   `json:"filter"`
	ReferenceDate string   `json:"reference_date"`
	WindowStart   string   `json:"window_start,omitempty"`
	WindowEnd     string   `json:"window_end,omitempty"`
	Results       []Result `json:"data"`
}

// Result is the score of one location.
type Result struct {
	Location       string          `json:"location"`
	TotalSightings int             `json:"total_sightings"`
	LastSighting   string          `json:"last_sighting"`
	RiskScore      float64         `json:"risk_score"`
	Level          Level           `json:"risk_level"`
	Color          Color           `json:"color"`
	Windowed       *WindowedDetail `json:"windowed,omitempty"`
	Recency        *RecencyDetail  `json:"recency,omitempty"`
}

// WindowedDetail carries the inputs of a windowed score.
type WindowedDetail struct {
	RecentSightings int     `json:"recent_sightings"`
	TotalNorm       float64 `json:"total_norm"`
	RecentNorm      float64 `json:"recent_norm"`
}

// RecencyDetail carries the inputs of a recency score.
type RecencyDetail struct {
	Recent7d      int     `json:"recent_7d"`
	Recent30d     int     `json:"recent_30d"`
	SpeciesCount  int     `json:"species_count"`
	DaysSinceLast *int    `json:"days_since_last,omitempty"`
	Factor        float64 `json:"recency_factor"`
}

func classify(score, high, medium float64) (Level, Color) {
	switch {
	case score >= high:
		return High, Red
	case score >= medium:
		return Medium, Yellow
	default:
		return Low, Green
	}
}

// round rounds half to even on the exact binary value, the way decimal
// formatting does.
func round(x float64, places int) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	return r
}

func filterAndSort(results []Result, c Color) []Result {
	out := results[:0]
	for _, r := range results {
		if c == "" || r.Color == c {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return out
}

func filterLabel(c Color) string {
	if c == "" {
		return "all"
	}
	return string(c)
}
