package cmd

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

var debugRulesCmd = &cobra.Command{
	Use:   "rules [NAME]",
	Short: "Dump the parsed rules",
	Long: `Dumps the rules exactly as the engine holds them after validation, including
defaults, normalized spellings and compiled patterns. Pass a name to dump a
single rule.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules(cmd)
		if err != nil {
			return err
		}

		cfg := spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
			MaxDepth:                12,
		}
		found := false
		for _, r := range rules {
			if len(args) == 1 && !strings.EqualFold(r.Name, args[0]) {
				continue
			}
			found = true
			fmt.Printf("%s\n%s\n", bold("── "+r.Name+" ──"), cfg.Sdump(r))
		}
		if len(args) == 1 && !found {
			return fmt.Errorf("no rule named '%s'", args[0])
		}
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugRulesCmd)

	f.bindRulesFlag(debugRulesCmd.Flags())
}
