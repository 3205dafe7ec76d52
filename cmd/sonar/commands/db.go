package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the sonar database",
	Long: sym.DB + ` db - Manage the sonar database

Examples:
  sonar db migrate                # Create or upgrade the schema
  sonar db seed                   # Load the built-in demo pipeline
  sonar db seed team.toml         # Load candidates/postings/placements from a file
  sonar db stats                  # Row counts and pipeline funnel`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(dbPathFlag)
		if err != nil {
			return err
		}
		defer database.Close()
		pterm.Success.Println("Database schema is up to date")
		return nil
	},
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed [file.toml]",
	Short: "Upsert candidates, postings and placements",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDbSeed,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and the stage funnel",
	RunE:  runDbStats,
}

var dbPathFlag string

func init() {
	DbCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Database path (default: database.path)")

	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbSeedCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbSeed(cmd *cobra.Command, args []string) error {
	var (
		seed talent.Seed
		err  error
	)
	if len(args) == 1 {
		f, openErr := os.Open(args[0])
		if openErr != nil {
			return errors.Wrapf(openErr, "failed to open seed file")
		}
		defer f.Close()
		seed, err = talent.DecodeSeed(f)
	} else {
		seed, err = talent.DemoSeed()
	}
	if err != nil {
		return err
	}
	for _, key := range seed.Undecoded {
		pterm.Warning.Printfln("Ignoring unknown key %s", key)
	}

	database, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	counts, err := seed.Apply(cmd.Context(), talent.NewSQLStore(database))
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Seeded %d candidates, %d postings, %d placements",
		counts.Candidates, counts.Postings, counts.Placements)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	path := dbPathFlag
	if path == "" {
		var err error
		if path, err = am.GetDatabasePath(); err != nil {
			return err
		}
	}
	database, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()

	tables := []string{"candidates", "postings", "candidate_stages", "interview_drafts",
		"processing_marks", "proposed_actions", "pipeline_events"}
	rows := [][]string{{"Table", "Rows"}}
	for _, table := range tables {
		var n int
		if err := database.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return errors.Wrapf(err, "failed to count %s", table)
		}
		rows = append(rows, []string{table, fmt.Sprint(n)})
	}

	pterm.DefaultSection.Printfln("%s %s", sym.DB, path)
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	snap, err := talent.NewSQLStore(database).Snapshot(ctx)
	if err != nil {
		return err
	}
	funnel := [][]string{append([]string{"Posting"}, stageNames()...)}
	for _, p := range snap.Postings {
		row := []string{p.Title}
		for _, st := range talent.Stages {
			row = append(row, fmt.Sprint(len(snap.InStage(p.ID, st))))
		}
		funnel = append(funnel, row)
	}
	pterm.DefaultSection.Println("Stage funnel")
	return pterm.DefaultTable.WithHasHeader().WithData(funnel).Render()
}

func stageNames() []string {
	names := make([]string, len(talent.Stages))
	for i, st := range talent.Stages {
		names[i] = string(st)
	}
	return names
}
