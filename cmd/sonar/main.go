package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duli1982/aitalentsonardemo-sub003/cmd/sonar/commands"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
)

var rootCmd = &cobra.Command{
	Use:   "sonar",
	Short: "Talent Sonar - autonomous recruiting agents with human review",
	Long: `Talent Sonar - orchestration core for autonomous recruiting agents.

Agents (sourcing, screening, scheduling, interview, analytics) run on
independent timers, claim candidate/job pairs through processing marks and
either write pipeline changes directly or propose them for human review.

Available commands:
  am        - Show and validate configuration
  db        - Migrate, seed and inspect the database
  pulse     - Start the scheduler or run one agent now
  proposals - Review proposed actions through the operator API
  events    - Show a candidate's audit trail
  version   - Show build information

Examples:
  sonar db migrate            # Create or upgrade the schema
  sonar db seed               # Load demo candidates and postings
  sonar pulse start           # Run agents and the operator API
  sonar pulse run screening   # Run one agent once, in process
  sonar proposals ls          # List pending proposals`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.ProposalsCmd)
	rootCmd.AddCommand(commands.EventsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
