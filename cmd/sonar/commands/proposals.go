package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/internal/util"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/server"
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
)

// ProposalsCmd reviews proposed actions on a running daemon.
var ProposalsCmd = &cobra.Command{
	Use:     "proposals",
	Aliases: []string{"px"},
	Short:   sym.Proposal + " Review proposed actions",
	Long: sym.Proposal + ` proposals - review what agents in recommend mode want to change.

Applying a proposal performs its change (stage move, skill verification or
draft activation) and records the reviewer in the audit trail. Dismissing
only closes it. Either is final: a proposal never returns to the queue.

Examples:
  sonar proposals ls             # Pending proposals
  sonar proposals ls --all       # Include applied and dismissed
  sonar proposals apply <id>
  sonar proposals dismiss <id>`,
}

var proposalsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List proposals, newest first",
	RunE:  runProposalsLs,
}

var proposalsApplyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Apply a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return review(cmd, args[0], "apply")
	},
}

var proposalsDismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Dismiss a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return review(cmd, args[0], "dismiss")
	},
}

// EventsCmd prints a candidate's audit trail.
var EventsCmd = &cobra.Command{
	Use:   "events <candidate-id>",
	Short: sym.Event + " Show a candidate's pipeline events",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	proposalsLsCmd.Flags().Bool("all", false, "Include applied and dismissed proposals")
	EventsCmd.Flags().Int("limit", 50, "Maximum events to show")

	addAPIFlags(ProposalsCmd)
	addAPIFlags(EventsCmd)

	ProposalsCmd.AddCommand(proposalsLsCmd)
	ProposalsCmd.AddCommand(proposalsApplyCmd)
	ProposalsCmd.AddCommand(proposalsDismissCmd)
}

func runProposalsLs(cmd *cobra.Command, args []string) error {
	var resp server.ListProposalsResponse
	if err := newAPIClient(cmd).get(cmd.Context(), "/api/proposals", &resp); err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")

	rows := [][]string{{"ID", "Agent", "Status", "Candidate", "Job", "Title", "Updated"}}
	for _, a := range resp.Proposals {
		if !all && a.Status != proposal.StatusProposed {
			continue
		}
		rows = append(rows, []string{
			a.ID,
			sym.ForAgent(string(a.Agent)) + " " + string(a.Agent),
			string(a.Status),
			a.CandidateID,
			a.JobID,
			util.Truncate(a.Title, 60),
			a.UpdatedAt.Local().Format(time.DateTime),
		})
	}

	if len(rows) == 1 {
		pterm.Info.Println("No pending proposals")
		return nil
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	pterm.Info.Printfln("%d pending", resp.Pending)
	return nil
}

func review(cmd *cobra.Command, id, verb string) error {
	var resp server.ReviewResponse
	if err := newAPIClient(cmd).post(cmd.Context(), "/api/proposals/"+id+"/"+verb, &resp); err != nil {
		return err
	}

	a := resp.Proposal
	if !resp.Changed {
		pterm.Warning.Printfln("Proposal %s was already %s", a.ID, a.Status)
		return nil
	}
	pterm.Success.Printfln("%s %s: %s", a.Status, a.ID, a.Title)
	for _, ev := range a.Evidence {
		pterm.Printfln("  %s: %s", ev.Label, ev.Value)
	}
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	var resp struct {
		Events []eventlog.Event `json:"events"`
	}
	path := fmt.Sprintf("/api/candidates/%s/events?limit=%d", args[0], limit)
	if err := newAPIClient(cmd).get(cmd.Context(), path, &resp); err != nil {
		return err
	}
	if len(resp.Events) == 0 {
		pterm.Info.Printfln("No events for %s", args[0])
		return nil
	}

	rows := [][]string{{"When", "Type", "Actor", "Job", "Stage", "Summary"}}
	for _, ev := range resp.Events {
		stage := ""
		if ev.ToStage != "" {
			stage = fmt.Sprintf("%s → %s", ev.FromStage, ev.ToStage)
		}
		rows = append(rows, []string{
			ev.CreatedAt.Local().Format(time.DateTime),
			string(ev.Type),
			fmt.Sprintf("%s:%s", ev.ActorType, ev.ActorID),
			ev.JobID,
			stage,
			util.Truncate(ev.Summary, 60),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
