package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tasksTriggerCmd = &cobra.Command{
	Use:     "trigger NAME",
	Short:   "Start a background task on the server",
	Example: `  mre tasks trigger check-rules --server http://localhost:8080`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		correlation, err := cli.TriggerTask(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to trigger task")
		}
		log.Info().Msgf("Task '%s' triggered", args[0])
		return nil
	},
}

var tasksLogsCmd = &cobra.Command{
	Use:   "logs NAME",
	Short: "Show the output of the latest run of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		entries, correlation, err := cli.GetTaskLogs(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to get task logs")
		}
		for _, e := range entries {
			fmt.Printf("%s %-5s %s\n", faint(e.Time.Format("15:04:05")), e.Level, e.Message)
		}
		return nil
	},
}

func init() {
	tasksCmd.AddCommand(tasksTriggerCmd)
	tasksCmd.AddCommand(tasksLogsCmd)
}
