package cmd

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sorengranfeldt/mre/internal/core"
)

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the enabled rules in evaluation order",
	Long: `Lists the rules that survive validation, in the order the engine evaluates them.
Reads the local rules documents (--rules) or asks a running server (--server).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules(cmd)
		if err != nil {
			return err
		}
		log.Info().Msgf("Loaded %d rule(s)", len(rules))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"#", "Name", "Action", "Subject Type", "Target", "Conditions", "Flows", "Extras",
		})

		for i, r := range rules {
			target := r.TargetSystem
			if r.Action == core.ActionExternal {
				target = "external:" + r.External
			} else if r.TargetObjectType != "" {
				target += " (" + r.TargetObjectType + ")"
			}

			conds := 0
			if r.Conditions != nil {
				conds = len(r.Conditions.Items)
			}

			t.AppendRow(table.Row{
				i + 1,
				truncate(r.Name, 35),
				r.Action,
				r.SubjectType,
				target,
				conds,
				len(r.InitialFlows),
				ruleExtras(r),
			})
		}

		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func ruleExtras(r core.Rule) string {
	var extras []string
	if r.ConditionalRename != nil {
		extras = append(extras, "rename")
	}
	if r.ReprovisionEnabled() {
		extras = append(extras, "reprovision")
	}
	if len(r.Helpers) > 0 {
		extras = append(extras, "helpers")
	}
	if r.AdditionalClasses != nil {
		extras = append(extras, "classes")
	}
	return strings.Join(extras, ", ")
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)

	f.bindRulesFlag(rulesListCmd.Flags())
}
