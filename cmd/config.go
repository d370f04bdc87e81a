package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Interact with the rules documents",
	Long:  `Utilities for validating and viewing the MRE rules documents`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
