package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sorengranfeldt/mre/internal/buildinfo"
	"github.com/sorengranfeldt/mre/internal/service"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the MRE installation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !f.IsRemote() {
			return infoLocally(cmd, args)
		}
		return infoRemote(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func infoRemote(cmd *cobra.Command, _ []string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}
	log.Info().Msg("Fetching build info from server...")
	about, correlation, err := cli.About(cmd.Context())
	if err != nil {
		return logError(err, correlation, "failed to get info from server")
	}
	printInfo(&about.Info)
	printStatus(about.Status)
	return nil
}

func infoLocally(_ *cobra.Command, _ []string) error {
	log.Info().Msg("Showing local build info...")
	info := buildinfo.GetBuildInfo()
	printInfo(&info)
	return nil
}

func printInfo(info *buildinfo.Info) {
	fmt.Println(bold("\n── MRE Build Information ──"))
	fmt.Printf("  %s:    %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:     %s\n", faint("Commit"), info.CommitHash)
}

func printStatus(st service.Status) {
	fmt.Println(bold("\n── Server Status ──"))
	if !st.Initialized {
		fmt.Printf("  %s\n", yellow("not initialized"))
		return
	}
	fmt.Printf("  %s:      %s\n", faint("Rules"), st.RulesPath)
	fmt.Printf("  %s:  %d rule(s), %d external(s)\n", faint("Loaded"), st.RuleCount, st.ExternalCount)
	fmt.Printf("  %s:      %s\n", faint("Audit"), st.AuditType)
	if st.DisableAllRules {
		fmt.Printf("  %s\n", yellow("all rules disabled"))
	}
}
