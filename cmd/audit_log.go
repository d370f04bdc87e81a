package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sorengranfeldt/mre/internal/audit"
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/pkg/client"
)

var (
	auditFile    string
	auditSubject string
	auditRule    string
	auditAction  string
)

// auditLogCmd represents the audit command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	Long: `Shows the latest audit entries, either from a JSON lines audit file written by
the 'file' auditor (--file) or from a running server (--server).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		filter := core.AuditFilter{
			SubjectID: auditSubject,
			Rule:      auditRule,
			Action:    auditAction,
		}

		var entries []core.AuditEntry
		if auditFile != "" {
			log.Info().Str("file", auditFile).Msg("Reading audit log...")
			entries, err = audit.ReadFile(auditFile, filter, limit)
			if err != nil {
				return err
			}
		} else {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}

			log.Info().Msg("Fetching audit log...")
			var correlation string
			entries, correlation, err = cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
				Limit:     uint(max(limit, 0)),
				SubjectID: filter.SubjectID,
				Rule:      filter.Rule,
				Action:    filter.Action,
			})
			if err != nil {
				return logError(err, correlation, "failed to fetch audit log")
			}
		}

		log.Info().Msgf("Retrieved %d audit entries", len(entries))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "Subject", "Rule", "Target", "Name", "Dry Run", "Error",
		})

		for _, e := range entries {
			dry := ""
			if e.DryRun {
				dry = "YES"
			}

			name := e.NewName
			if e.OldName != "" && e.OldName != e.NewName {
				name = e.OldName + " -> " + e.NewName
			}

			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Action,
				truncate(e.SubjectID, 36),
				e.Rule,
				e.TargetSystem,
				truncate(name, 60),
				dry,
				truncate(e.Error, 60),
			})
		}

		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().IntP("limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditFile, "file", "", "Read a local JSON lines audit file instead of asking the server")
	auditLogCmd.Flags().StringVar(&auditSubject, "subject", "", "Only show entries for this subject id")
	auditLogCmd.Flags().StringVar(&auditRule, "rule", "", "Only show entries for this rule")
	auditLogCmd.Flags().StringVar(&auditAction, "action", "", "Only show entries with this action")
}
