package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

// SQLiteStore implements the sighting store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sightings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	date        TEXT NOT NULL DEFAULT '',
	time        TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	species     TEXT NOT NULL DEFAULT '',
	year        TEXT NOT NULL DEFAULT '',
	month       TEXT NOT NULL DEFAULT '',
	latin_name  TEXT NOT NULL DEFAULT '',
	ingested_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sightings_date ON sightings(date);
CREATE INDEX IF NOT EXISTS idx_sightings_location ON sightings(location);
`

var sightingColumns = []string{
	"id", "external_id", "date", "time", "location", "species", "year", "month", "latin_name", "ingested_at",
}

// Migrate creates the sightings table and its indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// CheckReadiness implements the ops server's readiness probe.
func (s *SQLiteStore) CheckReadiness(ctx context.Context) error {
	return s.Ping(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert writes a sighting unless one with the same external id exists.
// The existence check and the write are a single statement.
func (s *SQLiteStore) Insert(ctx context.Context, sighting domain.Sighting) (InsertOutcome, error) {
	if sighting.ExternalID == "" {
		return 0, domain.NewValidationError("external_id", "", "must not be empty")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sightings (external_id, date, time, location, species, year, month, latin_name, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO NOTHING`,
		sighting.ExternalID, sighting.Date, sighting.Time, sighting.Location, sighting.Species,
		sighting.Year, sighting.Month, sighting.LatinName,
		sighting.IngestedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert sighting %s", sighting.ExternalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return Duplicate, nil
	}
	return Inserted, nil
}

// Count returns the number of stored sightings.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sightings`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count sightings")
}

// Page returns sightings newest first.
func (s *SQLiteStore) Page(ctx context.Context, offset, limit int) ([]domain.Sighting, error) {
	if offset < 0 {
		return nil, domain.NewValidationError("offset", strconv.Itoa(offset), "must not be negative")
	}
	if limit <= 0 {
		return nil, domain.NewValidationError("limit", strconv.Itoa(limit), "must be positive")
	}

	q := orderedSightings().Limit(uint64(limit)).Offset(uint64(offset))
	return s.querySightings(ctx, q, "page")
}

// Search returns sightings matching every set filter, newest first.
func (s *SQLiteStore) Search(ctx context.Context, f SearchFilter) ([]domain.Sighting, error) {
	q := orderedSightings()
	if f.StartDate != "" {
		q = q.Where(sq.GtOrEq{"date": f.StartDate})
	}
	if f.EndDate != "" {
		q = q.Where(sq.LtOrEq{"date": f.EndDate})
	}
	if f.Location != "" {
		q = q.Where(sq.Eq{"location": f.Location})
	}
	if f.Species != "" {
		q = q.Where(sq.Eq{"species": f.Species})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return s.querySightings(ctx, q, "search")
}

// GroupByLocation counts sightings and distinct species per location.
func (s *SQLiteStore) GroupByLocation(ctx context.Context) ([]domain.LocationStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT location, COUNT(*), COUNT(DISTINCT species)
		 FROM sightings
		 GROUP BY location
		 ORDER BY COUNT(*) DESC, location`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: group by location")
	}
	defer rows.Close()

	var out []domain.LocationStats
	for rows.Next() {
		var st domain.LocationStats
		if err := rows.Scan(&st.Location, &st.Count, &st.SpeciesCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location stats")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: group by location iterate")
}

// GroupBySpecies counts sightings and distinct locations per species.
func (s *SQLiteStore) GroupBySpecies(ctx context.Context) ([]domain.SpeciesStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT species, COUNT(*), COUNT(DISTINCT location)
		 FROM sightings
		 GROUP BY species
		 ORDER BY COUNT(*) DESC, species`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: group by species")
	}
	defer rows.Close()

	var out []domain.SpeciesStats
	for rows.Next() {
		var st domain.SpeciesStats
		if err := rows.Scan(&st.Species, &st.Count, &st.LocationCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan species stats")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: group by species iterate")
}

// GroupByTimeBucket counts dated sightings per calendar bucket, most recent
// bucket first. Monthly labels are "YYYY-MM"; weekly labels are ISO-8601
// weeks "YYYY-Www" (Monday start, ISO week-numbering year). Rows whose date
// is not a timestamp are left out. A positive limit truncates the result.
func (s *SQLiteStore) GroupByTimeBucket(ctx context.Context, g domain.Granularity, limit int) ([]domain.BucketCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM sightings WHERE date != ''`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan dates")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan date")
		}
		ts, ok := domain.ParseTimestamp(date)
		if !ok {
			continue
		}
		counts[bucketLabel(ts, g)]++
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan dates iterate")
	}

	out := make([]domain.BucketCount, 0, len(counts))
	for period, n := range counts {
		out = append(out, domain.BucketCount{Period: period, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func bucketLabel(t time.Time, g domain.Granularity) string {
	if g == domain.Weekly {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
	return t.Format("2006-01")
}

// GroupBySpeciesAndMonth counts sightings per species and month name over
// all years. Species are ordered by name and months by count descending.
func (s *SQLiteStore) GroupBySpeciesAndMonth(ctx context.Context) ([]domain.SpeciesMonths, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT species, month, COUNT(*)
		 FROM sightings
		 WHERE month != '' AND species != ''
		 GROUP BY species, month
		 ORDER BY species, COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: group by species and month")
	}
	defer rows.Close()

	var out []domain.SpeciesMonths
	for rows.Next() {
		var species string
		var mc domain.MonthCount
		if err := rows.Scan(&species, &mc.Month, &mc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan species month")
		}
		if len(out) == 0 || out[len(out)-1].Species != species {
			out = append(out, domain.SpeciesMonths{Species: species})
		}
		last := &out[len(out)-1]
		last.Months = append(last.Months, mc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: group by species and month iterate")
}

// MaxDate returns the greatest non-empty stored date. The bool is false when
// no sighting has a date.
func (s *SQLiteStore) MaxDate(ctx context.Context) (string, bool, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM sightings WHERE date != ''`).Scan(&latest)
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: max date")
	}
	return latest.String, latest.Valid && latest.String != "", nil
}

// LocationActivity summarizes dated sightings per location. For every cutoff
// the result carries the count of sightings with date >= cutoff.
func (s *SQLiteStore) LocationActivity(ctx context.Context, cutoffs ...string) ([]domain.LocationActivity, error) {
	q := sq.Select("location", "COUNT(*)", "MAX(date)", "COUNT(DISTINCT species)")
	for _, c := range cutoffs {
		q = q.Column(sq.Expr("SUM(CASE WHEN date >= ? THEN 1 ELSE 0 END)", c))
	}
	q = q.From("sightings").
		Where(sq.NotEq{"date": ""}).
		GroupBy("location").
		OrderBy("location")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build location activity query")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: location activity")
	}
	defer rows.Close()

	var out []domain.LocationActivity
	for rows.Next() {
		a := domain.LocationActivity{Recent: make([]int, len(cutoffs))}
		dest := []any{&a.Location, &a.Total, &a.LastSighting, &a.SpeciesCount}
		for i := range a.Recent {
			dest = append(dest, &a.Recent[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location activity")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: location activity iterate")
}

// MonthlySeries returns sighting counts per calendar month in chronological
// order. Buckets whose year is not numeric or whose month is not a month
// name are left out.
func (s *SQLiteStore) MonthlySeries(ctx context.Context) ([]domain.MonthlyCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, month, COUNT(*)
		 FROM sightings
		 WHERE year != '' AND month != ''
		 GROUP BY year, month`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: monthly series")
	}
	defer rows.Close()

	var out []domain.MonthlyCount
	for rows.Next() {
		var year, month string
		var n int
		if err := rows.Scan(&year, &month, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan monthly series")
		}
		y, err := strconv.Atoi(year)
		if err != nil {
			continue
		}
		m, ok := domain.MonthFromName(month)
		if !ok {
			continue
		}
		out = append(out, domain.MonthlyCount{Year: y, Month: m, Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: monthly series iterate")
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func orderedSightings() sq.SelectBuilder {
	return sq.Select(sightingColumns...).
		From("sightings").
		OrderBy("date DESC", "time DESC", "id DESC")
}

func (s *SQLiteStore) querySightings(ctx context.Context, q sq.SelectBuilder, op string) ([]domain.Sighting, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: build %s query", op)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	var out []domain.Sighting
	for rows.Next() {
		sighting, err := scanSighting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sighting)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func scanSighting(rows *sql.Rows) (domain.Sighting, error) {
	var s domain.Sighting
	var ingestedAt string
	if err := rows.Scan(
		&s.ID, &s.ExternalID, &s.Date, &s.Time, &s.Location, &s.Species,
		&s.Year, &s.Month, &s.LatinName, &ingestedAt,
	); err != nil {
		return domain.Sighting{}, eris.Wrap(err, "sqlite: scan sighting")
	}
	if t, err := time.Parse(time.RFC3339Nano, ingestedAt); err == nil {
		s.IngestedAt = t
	}
	return s, nil
}
