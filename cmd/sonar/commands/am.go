package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Show and validate sonar configuration",
	Long: sym.AM + ` am - Show and validate sonar configuration

Configuration sources (in order of precedence):
1. Environment variables (SONAR_* prefix, e.g. SONAR_AGENTS_SCREENING_MODE)
2. Project config (./sonar.toml, searched upward)
3. User config (~/.sonar/sonar.toml)
4. Default values

Examples:
  sonar am show                    # Effective configuration, secrets redacted
  sonar am show --format yaml
  sonar am validate                # Check modes, thresholds and cron expressions
  sonar am where                   # Which config file is in use`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which configuration file is loaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := am.FindConfigFile()
		if path == "" {
			pterm.Info.Printfln("No %s found, using defaults and environment", am.ConfigFileName)
			return nil
		}
		fmt.Println(path)
		return nil
	},
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(am.Redacted(cfg), "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(am.Redacted(cfg))
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Printf("# sonar configuration\n%s", string(data))

	case "toml":
		data, err := am.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("# sonar configuration\n%s", string(data))

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := [][]string{{"Agent", "Enabled", "Mode", "Every", "Threshold"}}
	for _, name := range names {
		a := cfg.Agents[name]
		every := fmt.Sprintf("%ds", a.IntervalSeconds)
		if a.Cron != "" {
			every = a.Cron
		}
		rows = append(rows, []string{sym.ForAgent(name) + " " + name, fmt.Sprint(a.Enabled), a.Mode, every, fmt.Sprint(a.Threshold)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}
