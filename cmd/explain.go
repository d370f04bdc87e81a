package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sorengranfeldt/mre/internal/host/memory"
)

var (
	explainRuleFilter string
	explainShowLogs   bool
	explainJSON       bool
)

var explainCmd = &cobra.Command{
	Use:   "explain FIXTURE",
	Short: "Explain how the server's rules treat a fixture",
	Long: `Sends a fixture to a running debug server and prints the trace of the dry pass.
Use it to check the rules a server has actually loaded.

Note: This command requires an MRE server to be running and reachable.`,
	Example: `  # Why is this person not renamed?
  mre explain --server http://localhost:8080 fixtures/jdoe.yaml --rule ad-rename`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := memory.LoadFixture(args[0])
		if err != nil {
			return err
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		out, correlation, err := cli.Explain(cmd.Context(), fixture)
		if err != nil {
			return logError(err, correlation, "failed to explain fixture")
		}
		return renderSimulation(out, explainRuleFilter, explainShowLogs, explainJSON)
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().StringVar(&explainRuleFilter, "rule", "", "Filter output to specific rule name (optional)")
	explainCmd.Flags().BoolVar(&explainShowLogs, "logs", false, "Print the engine diagnostics of the pass")
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "Print the raw result as JSON")
}
