package domain

import "time"

// RawRecord is one loosely-typed item from the upstream feed payload.
// Numbers are kept as json.Number so identifiers stringify exactly.
type RawRecord map[string]any

// Sighting is the canonical, stored form of one observed tick event.
type Sighting struct {
	ID         int64     `json:"id,omitempty"`
	ExternalID string    `json:"external_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Location   string    `json:"location"`
	Species    string    `json:"species"`
	Year       string    `json:"year"`
	Month      string    `json:"month"`
	LatinName  string    `json:"latin_name"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ParsedDate is the structured form of a feed date string. Month is zero
// when the month code is not one of "01".."12".
type ParsedDate struct {
	Year  string
	Month time.Month
	Time  string
}

// MonthName returns the full English month name, or "" for an unmapped month.
func (p ParsedDate) MonthName() string {
	if p.Month < time.January || p.Month > time.December {
		return ""
	}
	return p.Month.String()
}

// Granularity selects the calendar bucket used for trend counts.
type Granularity string

const (
	Monthly Granularity = "monthly"
	Weekly  Granularity = "weekly"
)

// ParseGranularity accepts "monthly", "weekly", or "" (monthly).
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", Monthly:
		return Monthly, nil
	case Weekly:
		return Weekly, nil
	default:
		return "", NewValidationError("period", s, "must be monthly or weekly")
	}
}

// LocationStats is the per-location count summary.
type LocationStats struct {
	Location     string `json:"location"`
	Count        int    `json:"count"`
	SpeciesCount int    `json:"species_count"`
}

// SpeciesStats is the per-species count summary.
type SpeciesStats struct {
	Species       string `json:"species"`
	Count         int    `json:"count"`
	LocationCount int    `json:"locations"`
}

// BucketCount is the number of dated sightings in one calendar bucket.
type BucketCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// MonthCount is a sighting count for a month name, aggregated over all years.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// SpeciesMonths groups the monthly counts of one species.
type SpeciesMonths struct {
	Species string
	Months  []MonthCount
}

// LocationActivity summarizes the dated sightings of one location. Recent
// holds one count per cutoff passed to the query, in the same order.
type LocationActivity struct {
	Location     string
	Total        int
	Recent       []int
	LastSighting string
	SpeciesCount int
}

// MonthlyCount is one bucket of the chronological monthly series.
type MonthlyCount struct {
	Year  int
	Month time.Month
	Count int
}
