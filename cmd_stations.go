package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	masterdataapp "rainlog/internal/masterdata/application"
	masterdata "rainlog/internal/masterdata/domain"
	masterdatapg "rainlog/internal/masterdata/infrastructure/postgres"
	rainfallpg "rainlog/internal/rainfall/infrastructure/postgres"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Station registry commands",
	Long:  `Commands for seeding and maintaining the weather station registry.`,
}

var seedStationsCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the configured stations that do not exist yet",
	Args:  cobra.NoArgs,
	RunE: withStationService(func(cmd *cobra.Command, args []string, service *masterdataapp.StationService) error {
		return seedStations(cmd, service)
	}),
}

var listStationsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stations",
	Args:  cobra.NoArgs,
	RunE: withStationService(func(cmd *cobra.Command, args []string, service *masterdataapp.StationService) error {
		stations, err := service.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
		for _, s := range stations {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.ID, s.Name, s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	}),
}

var renameStationCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a station",
	Args:  cobra.ExactArgs(2),
	RunE: withStationService(func(cmd *cobra.Command, args []string, service *masterdataapp.StationService) error {
		id, err := parseStationID(args[0])
		if err != nil {
			return err
		}
		station, err := service.Rename(cmd.Context(), id, args[1])
		if err != nil {
			return fmt.Errorf("rename station %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Station %d renamed to %s\n", station.ID, station.Name)
		return nil
	}),
}

var deleteStationCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a station that has no observations",
	Args:  cobra.ExactArgs(1),
	RunE: withStationService(func(cmd *cobra.Command, args []string, service *masterdataapp.StationService) error {
		id, err := parseStationID(args[0])
		if err != nil {
			return err
		}
		if err := service.Delete(cmd.Context(), id); err != nil {
			if errors.Is(err, masterdata.ErrStationInUse) {
				return fmt.Errorf("station %d still has observations", id)
			}
			return fmt.Errorf("delete station %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Station %d deleted\n", id)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(stationsCmd)
	stationsCmd.AddCommand(seedStationsCmd, listStationsCmd, renameStationCmd, deleteStationCmd)
}

type stationRunFunc func(cmd *cobra.Command, args []string, service *masterdataapp.StationService) error

func withStationService(run stationRunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		service, err := masterdataapp.NewStationService(masterdatapg.NewStationRepository(db), newLogger(),
			masterdataapp.WithReferenceChecker(rainfallpg.NewObservationRepository(db)))
		if err != nil {
			return err
		}
		return run(cmd, args, service)
	}
}

func seedStations(cmd *cobra.Command, service *masterdataapp.StationService) error {
	results, err := service.SeedDefaults(cmd.Context(), cfg.Stations)
	if err != nil {
		return err
	}
	for _, r := range results {
		state := "exists"
		if r.Created {
			state = "created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %d %s\n", state, r.Station.ID, r.Station.Name)
	}
	return nil
}

func parseStationID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid station id %q", raw)
	}
	return id, nil
}
