package main

import (
	"fmt"

	"github.com/spf13/cobra"

	masterdataapp "rainlog/internal/masterdata/application"
	masterdatapg "rainlog/internal/masterdata/infrastructure/postgres"
	"rainlog/internal/migrations"
)

var migrateSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply pending schema migrations. With --seed the default stations are created afterwards.`,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", false, "seed the default stations after migrating")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := migrations.NewRunner(db, logger)
	if err != nil {
		return err
	}
	applied, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", applied)

	if !migrateSeed {
		return nil
	}
	service, err := masterdataapp.NewStationService(masterdatapg.NewStationRepository(db), logger)
	if err != nil {
		return err
	}
	return seedStations(cmd, service)
}
