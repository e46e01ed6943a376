package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tick-sightings/internal/domain"
	"github.com/couchcryptid/tick-sightings/internal/forecast"
	"github.com/couchcryptid/tick-sightings/internal/pipeline"
)

var feedSample = filepath.Join("..", "..", "internal", "pipeline", "testdata", "feed_sample.json")

func execute(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.Bytes(), err
}

func useTempWorkspace(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "ticks.db"))
	t.Setenv("MODEL_PATH", filepath.Join(dir, "model.json"))
	t.Setenv("LOG_LEVEL", "error")
}

func subcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)
	for _, name := range []string{"serve", "ingest", "train", "forecast", "risk", "stats", "patterns", "sightings"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}

	assert.True(t, subcommandNames(riskCmd)["assessment"])
	assert.True(t, subcommandNames(riskCmd)["scoring"])
	for _, name := range []string{"overview", "regions", "species", "trends"} {
		assert.True(t, subcommandNames(statsCmd)[name], "stats should have subcommand %q", name)
	}
	assert.True(t, subcommandNames(patternsCmd)["seasonal"])
}

func TestCommandFlags(t *testing.T) {
	require.NotNil(t, ingestCmd.Flags().Lookup("file"))
	require.NotNil(t, riskScoringCmd.Flags().Lookup("danger-level"))
	for _, name := range []string{"start-date", "end-date", "location", "species"} {
		assert.NotNil(t, sightingsSearchCmd.Flags().Lookup(name), "sightings search should have --%s", name)
	}
	limit := sightingsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
}

func TestIngestFileThenQuery(t *testing.T) {
	useTempWorkspace(t)

	out, err := execute(t, "ingest", "--file", feedSample)
	require.NoError(t, err)
	var report pipeline.Report
	require.NoError(t, json.Unmarshal(out, &report))
	assert.Equal(t, 8, report.Fetched)
	assert.Equal(t, 6, report.Inserted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Skipped)

	out, err = execute(t, "stats", "regions")
	require.NoError(t, err)
	var regions []domain.LocationStats
	require.NoError(t, json.Unmarshal(out, &regions))
	require.Len(t, regions, 5)
	assert.Equal(t, domain.LocationStats{Location: "Manchester", Count: 2, SpeciesCount: 1}, regions[0])

	out, err = execute(t, "sightings", "search", "--location", "Leeds")
	require.NoError(t, err)
	var found []domain.Sighting
	require.NoError(t, json.Unmarshal(out, &found))
	require.Len(t, found, 1)
	assert.Equal(t, "90817", found[0].ExternalID)

	out, err = execute(t, "sightings", "list", "--offset", "0", "--limit", "2")
	require.NoError(t, err)
	var p page
	require.NoError(t, json.Unmarshal(out, &p))
	assert.Equal(t, 6, p.Total)
	require.Len(t, p.Data, 2)
	assert.Equal(t, "2024-07-09T07:45:00", p.Data[0].Date)
}

func TestTrainThenForecast(t *testing.T) {
	useTempWorkspace(t)

	_, err := execute(t, "forecast")
	require.ErrorIs(t, err, domain.ErrModelUnavailable)

	_, err = execute(t, "ingest", "--file", feedSample)
	require.NoError(t, err)
	_, err = execute(t, "train")
	require.NoError(t, err)

	out, err := execute(t, "forecast")
	require.NoError(t, err)
	var f forecast.Forecast
	require.NoError(t, json.Unmarshal(out, &f))
	assert.Equal(t, forecast.Stable, f.Trend)
	assert.Equal(t, []forecast.Prediction{
		{Month: "August", Year: 2024, PredictedCount: 2},
		{Month: "September", Year: 2024, PredictedCount: 2},
		{Month: "October", Year: 2024, PredictedCount: 2},
	}, f.Predictions)
}

func TestRiskRejectsUnknownDangerLevel(t *testing.T) {
	useTempWorkspace(t)

	_, err := execute(t, "risk", "assessment", "--danger-level", "purple")
	require.ErrorIs(t, err, domain.ErrValidation)

	// Flags persist on the shared command tree.
	require.NoError(t, riskAssessmentCmd.Flags().Set("danger-level", ""))
}

func TestRiskAssessmentEmptyStore(t *testing.T) {
	useTempWorkspace(t)

	_, err := execute(t, "risk", "assessment", "--danger-level", "")
	require.ErrorIs(t, err, domain.ErrNoData)
}
