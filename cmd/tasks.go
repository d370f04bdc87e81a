package cmd

import "github.com/spf13/cobra"

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and trigger the server's background tasks",
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
