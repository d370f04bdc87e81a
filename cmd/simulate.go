package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sorengranfeldt/mre/internal/host/memory"
	"github.com/sorengranfeldt/mre/internal/service"
)

var (
	simulateRuleFilter string
	simulateShowLogs   bool
	simulateJSON       bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate FIXTURE",
	Short: "Run a dry pass for a fixture against local rules",
	Long: `Builds an in-memory subject with its target systems from a YAML fixture and
runs one processing pass with the given rules. Nothing outside the process is
changed. The output shows why each rule acted or not, and which changes the
target systems would have received.`,
	Example: `  # Would this person be provisioned to AD?
  mre simulate -r rules/ fixtures/jdoe.yaml

  # Only show the trace of one rule, with engine diagnostics
  mre simulate -r rules/ fixtures/jdoe.yaml --rule ad-users --logs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := memory.LoadFixture(args[0])
		if err != nil {
			return err
		}

		svc, err := f.GetLocalService(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Terminate(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("failed to terminate service")
			}
		}()

		out, err := svc.Simulate(cmd.Context(), fixture)
		if err != nil {
			return err
		}
		return renderSimulation(out, simulateRuleFilter, simulateShowLogs, simulateJSON)
	},
}

func renderSimulation(out *service.SimulationResult, ruleFilter string, showLogs, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printSimulation(out, ruleFilter, showLogs)
	if out.Error != "" {
		return fmt.Errorf("pass failed: %s", out.Error)
	}
	return nil
}

func printChanges(changes []memory.Change) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Kind", "Target System", "Name", "Details"})

	for i, c := range changes {
		t.AppendRow(table.Row{
			i + 1,
			c.Kind,
			c.TargetSystem,
			c.Name,
			changeDetails(c),
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

func changeDetails(c memory.Change) string {
	var parts []string
	if c.OldName != "" {
		parts = append(parts, "was "+c.OldName)
	}
	if c.ObjectType != "" {
		parts = append(parts, "type "+c.ObjectType)
	}
	if len(c.Classes) > 0 {
		parts = append(parts, "classes "+strings.Join(c.Classes, ","))
	}
	names := make([]string, 0, len(c.Attributes))
	for name := range c.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, truncate(strings.Join(c.Attributes[name], "|"), 40)))
	}
	return strings.Join(parts, "\n")
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f.bindRulesFlag(simulateCmd.Flags())
	simulateCmd.Flags().StringVar(&simulateRuleFilter, "rule", "", "Filter output to specific rule name (optional)")
	simulateCmd.Flags().BoolVar(&simulateShowLogs, "logs", false, "Print the engine diagnostics of the pass")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "Print the raw result as JSON")
}
