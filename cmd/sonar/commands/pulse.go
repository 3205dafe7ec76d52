package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/duli1982/aitalentsonardemo-sub003/agent"
	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
	"github.com/duli1982/aitalentsonardemo-sub003/server"
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
	"github.com/duli1982/aitalentsonardemo-sub003/talent"
)

// PulseCmd groups scheduler commands.
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Pulse + " Run the agent scheduler",
	Long: sym.Pulse + ` Pulse - the agent scheduler.

Each agent is a job with its own interval (or cron expression). A job never
overlaps with itself; different agents run concurrently.

Examples:
  sonar pulse start                   # Scheduler + operator API in foreground
  sonar pulse start --port 8080       # Override server.port
  sonar pulse run screening           # One screening run, then exit
  sonar pulse run screening --mode recommend
  sonar pulse jobs                    # Job table from a running daemon`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var pulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler and the operator API",
	Long: `Start every enabled agent on its timer and serve the operator API.

Edits to sonar.toml are picked up while running: agent modes, thresholds
and enabled flags apply immediately; interval and cron changes need a restart.
Stops gracefully on Ctrl+C.`,
	RunE: runPulseStart,
}

var pulseRunCmd = &cobra.Command{
	Use:   "run <agent>",
	Short: "Run one agent once, in process",
	Args:  cobra.ExactArgs(1),
	RunE:  runPulseRun,
}

var pulseJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs of a running daemon",
	RunE:  runPulseJobs,
}

func init() {
	pulseStartCmd.Flags().Int("port", 0, "Operator API port (default: server.port)")
	pulseRunCmd.Flags().String("mode", "", "Override the agent's mode: auto_write or recommend")

	addAPIFlags(pulseJobsCmd)

	PulseCmd.AddCommand(pulseStartCmd)
	PulseCmd.AddCommand(pulseRunCmd)
	PulseCmd.AddCommand(pulseJobsCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Logger
	c, err := buildCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	notifications := c.bus.Subscribe(bus.DefaultSubscriberBuffer)
	defer c.bus.Unsubscribe(notifications)
	go printNotifications(ctx, notifications)

	if err := c.registry.Schedule(c.scheduler, cfg); err != nil {
		return err
	}

	if path := am.FindConfigFile(); path != "" {
		watcher, err := am.NewConfigWatcher(path, log)
		if err != nil {
			log.Warnw("Config hot reload disabled", logger.FieldError, err)
		} else {
			watcher.OnReload(func(next *am.Config) error {
				c.registry.Reconfigure(c.scheduler, next)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	srv, err := server.New(server.Deps{
		Scheduler: c.scheduler,
		Queue:     c.queue,
		Reviewer:  c.reviewer,
		Events:    c.events,
		Bus:       c.bus,
		Logger:    log,
	}, cfg.Server)
	if err != nil {
		return err
	}

	printBanner(cfg, c)

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	pterm.Info.Printfln("%s Stopping agents...", sym.PulseClose)
	return nil
}

func printBanner(cfg *am.Config, c *core) {
	pterm.DefaultHeader.WithFullWidth().Printf("%s Talent Sonar", sym.Pulse)
	pterm.Println()

	rows := [][]string{{"Agent", "Enabled", "Mode", "Every", "Next run"}}
	for _, job := range c.scheduler.Jobs() {
		name := strings.TrimPrefix(job.ID, "agent:")
		every := job.Interval.String()
		if job.Cron != "" {
			every = job.Cron
		}
		next := "-"
		if job.NextRun != nil {
			next = job.NextRun.Format(time.TimeOnly)
		}
		rows = append(rows, []string{
			sym.ForAgent(name) + " " + name,
			fmt.Sprint(job.Enabled),
			cfg.Agent(name).Mode,
			every,
			next,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	pterm.Info.Printfln("Operator API on http://localhost:%d (events on /ws)", cfg.Server.Port)
	pterm.Info.Printfln("Database: %s, marks backend: %s, inference: %s",
		cfg.Database.Path, cfg.Marks.Backend, cfg.Inference.Provider)
	pterm.Info.Printfln("%s Press Ctrl+C for graceful shutdown", sym.Pulse)
	pterm.Println()
}

// printNotifications mirrors bus notifications to the terminal.
func printNotifications(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Kind != bus.KindNotification {
				continue
			}
			line := fmt.Sprintf("%s: %s", ev.Title, ev.Message)
			switch ev.Severity {
			case bus.SeveritySuccess:
				pterm.Success.Println(line)
			case bus.SeverityWarning:
				pterm.Warning.Println(line)
			case bus.SeverityError:
				pterm.Error.Println(line)
			default:
				pterm.Info.Println(line)
			}
		}
	}
}

func runPulseRun(cmd *cobra.Command, args []string) error {
	agentType := talent.AgentType(args[0])

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildCore(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer c.Close()

	a, ok := c.registry.Get(agentType)
	if !ok {
		var names []string
		for _, known := range c.registry.Agents() {
			names = append(names, string(known.Type()))
		}
		return errors.WithHintf(errors.NewInvalidRequestError("unknown agent %q", args[0]),
			"agents: %s", strings.Join(names, ", "))
	}

	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		p := a.Policy()
		p.Mode = talent.Mode(mode)
		if p.Mode != talent.ModeAutoWrite && p.Mode != talent.ModeRecommend {
			return errors.NewInvalidRequestError("unknown mode %q", mode)
		}
		a.SetPolicy(p)
	}

	id, err := c.scheduler.Register(schedule.Job{
		ID:       agent.JobID(agentType),
		Name:     string(agentType) + " agent",
		Category: agent.JobCategory,
		Interval: time.Hour,
	}, a.Run)
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("%s Running %s agent (%s)...",
		sym.ForAgent(string(agentType)), agentType, a.Policy().Mode))
	result, err := c.scheduler.Run(ctx, id)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}

	if !result.Success {
		spinner.Fail(result.Message)
		for _, d := range result.Details {
			pterm.Printfln("  %s", d)
		}
		return errors.Newf("%s agent run failed", agentType)
	}
	spinner.Success(result.Message)
	printPayload(result.Payload)

	if pending := c.queue.Pending(); len(pending) > 0 {
		pterm.Info.Printfln("%d proposal(s) await review: sonar proposals ls", len(pending))
	}
	return nil
}

func printPayload(payload map[string]any) {
	if len(payload) == 0 {
		return
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := [][]string{{"Outcome", "Count"}}
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprint(payload[k])})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runPulseJobs(cmd *cobra.Command, args []string) error {
	var resp server.ListJobsResponse
	if err := newAPIClient(cmd).get(cmd.Context(), "/api/jobs", &resp); err != nil {
		return err
	}

	rows := [][]string{{"Job", "Status", "Enabled", "Last run", "Next run"}}
	for _, j := range resp.Jobs {
		rows = append(rows, []string{j.ID, j.Status, fmt.Sprint(j.Enabled), formatTime(j.LastRun), formatTime(j.NextRun)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
