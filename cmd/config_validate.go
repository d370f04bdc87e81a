package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the rules documents",
	Long: `Loads the rules the same way the engine does on initialization: documents are
parsed, disabled rules dropped, deprecated spellings reported and patterns and
expressions compiled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadRules()
		if err != nil {
			log.Error().Err(err).Msg("Configuration is invalid.")
			return err
		}
		log.Info().
			Strs("files", cfg.Files).
			Int("rules", len(cfg.Rules)).
			Int("externals", len(cfg.Externals)).
			Msg("Configuration is valid.")
		if cfg.DisableAllRules {
			log.Warn().Msg("disable_all_rules is set, processing passes will be no-ops")
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)

	f.bindRulesFlag(configValidateCmd.Flags())
}
