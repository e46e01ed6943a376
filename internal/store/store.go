// Package store persists sightings in SQLite and exposes the read primitives
// the analytics, risk and forecast packages are built on.
package store

// InsertOutcome reports what happened to one inserted sighting.
type InsertOutcome int

const (
	// Inserted means the sighting was written.
	Inserted InsertOutcome = iota + 1
	// Duplicate means a sighting with the same external id already existed;
	// nothing was written.
	Duplicate
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// SearchFilter holds optional, AND-conjoined sighting filters. Empty fields
// impose no constraint. Date bounds are inclusive string comparisons on the
// stored date text. Limit 0 means no limit.
type SearchFilter struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Location  string `json:"location,omitempty"`
	Species   string `json:"species,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}
