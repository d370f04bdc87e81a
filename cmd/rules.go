package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sorengranfeldt/mre/internal/core"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the loaded rules",
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

// loadRules returns the validated rules, either from a remote server or
// from the local rules path.
func loadRules(cmd *cobra.Command) ([]core.Rule, error) {
	if f.IsRemote() && f.RulesPath == "" {
		cli, err := f.GetClient()
		if err != nil {
			return nil, err
		}
		rules, correlation, err := cli.Rules(cmd.Context())
		if err != nil {
			return nil, logError(err, correlation, "failed to list rules")
		}
		return rules, nil
	}
	cfg, err := f.LoadRules()
	if err != nil {
		return nil, err
	}
	return cfg.Rules, nil
}
