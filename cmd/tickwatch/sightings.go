package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/tick-sightings/internal/domain"
	"github.com/couchcryptid/tick-sightings/internal/store"
)

var sightingsCmd = &cobra.Command{
	Use:   "sightings",
	Short: "Browse stored sightings",
}

var sightingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sightings newest first",
	RunE:  runSightingsList,
}

var sightingsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search sightings by date range, location and species",
	Long: `Returns sightings matching every given filter, newest first. Dates are
compared as text, so YYYY-MM-DD bounds work against stored timestamps.
At most SEARCH_LIMIT results are returned (0 = unlimited).`,
	RunE: runSightingsSearch,
}

// page is one slice of the newest-first sighting list.
type page struct {
	Total  int               `json:"total"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
	Data   []domain.Sighting `json:"data"`
}

func init() {
	lf := sightingsListCmd.Flags()
	lf.Int("offset", 0, "number of sightings to skip")
	lf.Int("limit", 50, "maximum number of sightings")

	sf := sightingsSearchCmd.Flags()
	sf.String("start-date", "", "earliest date, inclusive")
	sf.String("end-date", "", "latest date, inclusive")
	sf.String("location", "", "exact location")
	sf.String("species", "", "exact species")

	sightingsCmd.AddCommand(sightingsListCmd, sightingsSearchCmd)
	rootCmd.AddCommand(sightingsCmd)
}

func runSightingsList(cmd *cobra.Command, _ []string) error {
	offset, _ := cmd.Flags().GetInt("offset")
	limit, _ := cmd.Flags().GetInt("limit")

	return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
		data, err := st.Page(ctx, offset, limit)
		if err != nil {
			return err
		}
		total, err := st.Count(ctx)
		if err != nil {
			return err
		}
		if data == nil {
			data = []domain.Sighting{}
		}
		return printJSON(cmd, page{Total: total, Offset: offset, Limit: limit, Data: data})
	})
}

func runSightingsSearch(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	filter := store.SearchFilter{Limit: cfg.SearchLimit}
	filter.StartDate, _ = f.GetString("start-date")
	filter.EndDate, _ = f.GetString("end-date")
	filter.Location, _ = f.GetString("location")
	filter.Species, _ = f.GetString("species")

	return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
		data, err := st.Search(ctx, filter)
		if err != nil {
			return err
		}
		if data == nil {
			data = []domain.Sighting{}
		}
		return printJSON(cmd, data)
	})
}
