package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tick-sightings/internal/domain"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

var (
	_ Scorer = (*Windowed)(nil)
	_ Scorer = (*Recency)(nil)
)

var testNow = time.Date(2024, time.July, 20, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	maxDate    string
	acts       []domain.LocationActivity
	err        error
	gotCutoffs []string
}

func (f *fakeStore) MaxDate(context.Context) (string, bool, error) {
	return f.maxDate, f.maxDate != "", f.err
}

func (f *fakeStore) LocationActivity(_ context.Context, cutoffs ...string) ([]domain.LocationActivity, error) {
	f.gotCutoffs = cutoffs
	return f.acts, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func locations(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Location
	}
	return out
}

// --- Windowed ---

func TestScoreWindowed_Normalization(t *testing.T) {
	acts := []domain.LocationActivity{
		{Location: "A", Total: 10, Recent: []int{0}},
		{Location: "B", Total: 20, Recent: []int{5}},
		{Location: "C", Total: 30, Recent: []int{10}},
	}

	results := ScoreWindowed(acts)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"C", "B", "A"}, locations(results))

	byLoc := map[string]Result{}
	for _, r := range results {
		byLoc[r.Location] = r
	}

	assert.InDelta(t, 0.0, byLoc["A"].Windowed.TotalNorm, 1e-12)
	assert.InDelta(t, 0.5, byLoc["B"].Windowed.TotalNorm, 1e-12)
	assert.InDelta(t, 1.0, byLoc["C"].Windowed.TotalNorm, 1e-12)
	assert.InDelta(t, 0.0, byLoc["A"].Windowed.RecentNorm, 1e-12)
	assert.InDelta(t, 0.5, byLoc["B"].Windowed.RecentNorm, 1e-12)
	assert.InDelta(t, 1.0, byLoc["C"].Windowed.RecentNorm, 1e-12)

	assert.Equal(t, 0.0, byLoc["A"].RiskScore)
	assert.Equal(t, 50.0, byLoc["B"].RiskScore)
	assert.Equal(t, 100.0, byLoc["C"].RiskScore)

	assert.Equal(t, Low, byLoc["A"].Level)
	assert.Equal(t, Green, byLoc["A"].Color)
	assert.Equal(t, Medium, byLoc["B"].Level)
	assert.Equal(t, Yellow, byLoc["B"].Color)
	assert.Equal(t, High, byLoc["C"].Level)
	assert.Equal(t, Red, byLoc["C"].Color)
}

func TestScoreWindowed_SingleLocation(t *testing.T) {
	results := ScoreWindowed([]domain.LocationActivity{{Location: "Only", Total: 12, Recent: []int{4}}})
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Windowed.TotalNorm)
	assert.Equal(t, 1.0, results[0].Windowed.RecentNorm)
	assert.Equal(t, 40.0, results[0].RiskScore)
	assert.Equal(t, Medium, results[0].Level)
}

func TestScoreWindowed_NoRecentActivity(t *testing.T) {
	results := ScoreWindowed([]domain.LocationActivity{
		{Location: "A", Total: 1, Recent: []int{0}},
		{Location: "B", Total: 2, Recent: []int{0}},
	})
	require.Len(t, results, 2)
	assert.Equal(t, 60.0, results[0].RiskScore)
	assert.Equal(t, 0.0, results[1].RiskScore)
	for _, r := range results {
		assert.Zero(t, r.Windowed.RecentNorm)
	}
}

func TestScoreWindowed_RoundsToOneDecimal(t *testing.T) {
	results := ScoreWindowed([]domain.LocationActivity{
		{Location: "A", Total: 3, Recent: []int{2}},
		{Location: "B", Total: 10, Recent: []int{7}},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "B", results[0].Location)
	assert.Equal(t, 100.0, results[0].RiskScore)
	assert.Equal(t, 11.4, results[1].RiskScore)
}

func TestScoreWindowed_Monotonic(t *testing.T) {
	results := ScoreWindowed([]domain.LocationActivity{
		{Location: "low", Total: 5, Recent: []int{1}},
		{Location: "more-total", Total: 9, Recent: []int{1}},
		{Location: "more-recent", Total: 5, Recent: []int{6}},
		{Location: "both", Total: 9, Recent: []int{6}},
	})
	score := map[string]float64{}
	for _, r := range results {
		score[r.Location] = r.RiskScore
	}
	assert.Greater(t, score["more-total"], score["low"])
	assert.Greater(t, score["more-recent"], score["low"])
	assert.Greater(t, score["both"], score["more-total"])
	assert.Greater(t, score["both"], score["more-recent"])
}

func TestScoreWindowed_Empty(t *testing.T) {
	assert.Empty(t, ScoreWindowed(nil))
}

func TestWindowed_Score(t *testing.T) {
	fs := &fakeStore{
		maxDate: "2024-12-30T10:00:00",
		acts: []domain.LocationActivity{
			{Location: "Leeds", Total: 10, Recent: []int{0}, LastSighting: "2024-08-01T00:00:00"},
			{Location: "York", Total: 30, Recent: []int{10}, LastSighting: "2024-12-30T10:00:00"},
		},
	}
	w := NewWindowed(fs, discardLogger())

	a, err := w.Score(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-10-01T10:00:00"}, fs.gotCutoffs)
	assert.Equal(t, AlgorithmWindowed, a.Algorithm)
	assert.Equal(t, "all", a.Filter)
	assert.Equal(t, "2024-12-30T10:00:00", a.ReferenceDate)
	assert.Equal(t, "2024-10-01T10:00:00", a.WindowStart)
	assert.Equal(t, "2024-12-30T10:00:00", a.WindowEnd)
	assert.Equal(t, []string{"York", "Leeds"}, locations(a.Results))

	a, err = w.Score(context.Background(), Query{Color: Green})
	require.NoError(t, err)
	assert.Equal(t, "green", a.Filter)
	assert.Equal(t, []string{"Leeds"}, locations(a.Results))
}

func TestWindowed_Score_NoData(t *testing.T) {
	tests := []struct {
		name string
		fs   *fakeStore
	}{
		{"no dated rows", &fakeStore{}},
		{"max date not a timestamp", &fakeStore{maxDate: "sometime"}},
		{"no activity rows", &fakeStore{maxDate: "2024-12-30T10:00:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindowed(tt.fs, discardLogger()).
				Score(context.Background(), Query{})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrNoData)
		})
	}
}

func TestWindowed_Score_StoreError(t *testing.T) {
	boom := errors.New("database is locked")
	_, err := NewWindowed(&fakeStore{err: boom}, discardLogger()).
		Score(context.Background(), Query{})
	assert.ErrorIs(t, err, boom)
}

// --- Recency ---

func recencyActivities() []domain.LocationActivity {
	return []domain.LocationActivity{
		{Location: "Stale", Total: 25, Recent: []int{0, 0}, LastSighting: "2024-06-10T00:00:00", SpeciesCount: 1},
		{Location: "Busy", Total: 40, Recent: []int{3, 9}, LastSighting: "2024-07-18T09:00:00", SpeciesCount: 3},
		{Location: "Garbled", Total: 8, Recent: []int{4, 4}, LastSighting: "not-a-date", SpeciesCount: 1},
		{Location: "Fading", Total: 50, Recent: []int{0, 6}, LastSighting: "2024-07-05T00:00:00", SpeciesCount: 2},
	}
}

func TestScoreRecency(t *testing.T) {
	results := ScoreRecency(recencyActivities(), testNow)
	require.Len(t, results, 4)
	assert.Equal(t, []string{"Busy", "Fading", "Garbled", "Stale"}, locations(results))

	busy := results[0]
	assert.Equal(t, 5.23, busy.RiskScore)
	assert.Equal(t, High, busy.Level)
	assert.Equal(t, Red, busy.Color)
	require.NotNil(t, busy.Recency.DaysSinceLast)
	assert.Equal(t, 2, *busy.Recency.DaysSinceLast)
	assert.InDelta(t, 28.0/30.0, busy.Recency.Factor, 1e-12)
	assert.Equal(t, 9, busy.Recency.Recent30d)
	assert.Equal(t, 3, busy.Recency.SpeciesCount)

	fading := results[1]
	assert.Equal(t, 2.5, fading.RiskScore)
	assert.Equal(t, Medium, fading.Level)
	assert.Equal(t, 15, *fading.Recency.DaysSinceLast)

	garbled := results[2]
	assert.Equal(t, 2.0, garbled.RiskScore, "only the 7 day bonus applies")
	assert.Equal(t, Yellow, garbled.Color)
	assert.Nil(t, garbled.Recency.DaysSinceLast)
	assert.Zero(t, garbled.Recency.Factor)

	stale := results[3]
	assert.Equal(t, 0.0, stale.RiskScore)
	assert.Equal(t, Low, stale.Level)
	assert.Equal(t, 40, *stale.Recency.DaysSinceLast)
}

func TestRecency_Score(t *testing.T) {
	fs := &fakeStore{acts: recencyActivities()}
	r := NewRecency(fs, clockwork.NewFakeClockAt(testNow), discardLogger())

	a, err := r.Score(context.Background(), Query{Color: Yellow})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-07-13", "2024-06-20"}, fs.gotCutoffs)
	assert.Equal(t, AlgorithmRecency, a.Algorithm)
	assert.Equal(t, "yellow", a.Filter)
	assert.Equal(t, "2024-07-20T12:00:00", a.ReferenceDate)
	assert.Equal(t, []string{"Fading", "Garbled"}, locations(a.Results))
}

func TestRecency_Score_NoData(t *testing.T) {
	r := NewRecency(&fakeStore{}, clockwork.NewFakeClockAt(testNow), discardLogger())
	_, err := r.Score(context.Background(), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestScorers_RejectUnknownColor(t *testing.T) {
	scorers := map[string]Scorer{
		AlgorithmWindowed: NewWindowed(&fakeStore{}, discardLogger()),
		AlgorithmRecency:  NewRecency(&fakeStore{}, clockwork.NewFakeClockAt(testNow), discardLogger()),
	}
	for name, s := range scorers {
		t.Run(name, func(t *testing.T) {
			_, err := s.Score(context.Background(), Query{Color: "purple"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestParseColor(t *testing.T) {
	for _, s := range []string{"", "red", "yellow", "green"} {
		c, err := ParseColor(s)
		require.NoError(t, err)
		assert.Equal(t, Color(s), c)
	}
	_, err := ParseColor("RED")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRound_HalfToEvenOnBinaryValue(t *testing.T) {
	assert.Equal(t, 2.67, round(2.675, 2))
	assert.Equal(t, 0.12, round(0.125, 2))
	assert.Equal(t, 0.38, round(0.375, 2))
	assert.Equal(t, 11.4, round(11.428571, 1))
}

// --- against SQLite ---

func TestScorers_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "risk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	windowed := NewWindowed(st, discardLogger())
	recency := NewRecency(st, clockwork.NewFakeClockAt(testNow), discardLogger())

	_, err = windowed.Score(ctx, Query{})
	require.ErrorIs(t, err, domain.ErrNoData)
	_, err = recency.Score(ctx, Query{})
	require.ErrorIs(t, err, domain.ErrNoData)

	for i, raw := range []domain.RawRecord{
		{"id": "1", "date": "2024-07-13T08:00:00", "location": "Leeds", "species": "Tree tick"},
		{"id": "2", "date": "2024-07-19T08:00:00", "location": "Leeds", "species": "Marsh tick"},
		{"id": "3", "date": "2024-01-02T08:00:00", "location": "York", "species": "Tree tick"},
		{"id": "4", "date": "", "location": "Hull", "species": "Tree tick"},
	} {
		s, ok := domain.Normalize(raw)
		require.True(t, ok, i)
		s.IngestedAt = testNow
		_, err := st.Insert(ctx, s)
		require.NoError(t, err)
	}

	a, err := windowed.Score(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, "2024-07-19T08:00:00", a.ReferenceDate)
	assert.Equal(t, []string{"Leeds", "York"}, locations(a.Results))
	assert.Equal(t, 100.0, a.Results[0].RiskScore)
	assert.Equal(t, 2, a.Results[0].Windowed.RecentSightings)

	b, err := recency.Score(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, b.Results, 2)
	leeds := b.Results[0]
	assert.Equal(t, "Leeds", leeds.Location)
	assert.Equal(t, 2, leeds.Recency.Recent7d, "a sighting on the cutoff date counts")
	assert.Equal(t, 2, leeds.Recency.Recent30d)
	assert.Equal(t, 2, leeds.Recency.SpeciesCount)
}
