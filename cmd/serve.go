package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sorengranfeldt/mre/internal/api"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/service"
	"github.com/sorengranfeldt/mre/internal/tasks"
)

const (
	ListenAddrKey    = "listen"
	CheckIntervalKey = "check_interval"

	CheckRulesTaskName = "check-rules"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MRE debug server",
	Long: `Loads the rules and serves a small HTTP API to inspect them: the loaded rules,
dry-run explanations for fixtures and the audit log.

The server never talks to a real directory. Explain requests run against an
in-memory host built from the posted fixture. The 'check-rules' task re-validates
the rules on disk, on demand or every --check-interval, and reports whether they
differ from the active ones. Loaded rules only change on restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := f.rulesPath()
		if err != nil {
			return err
		}
		addr := viper.GetString(ListenAddrKey)

		log.Info().Str("rules", path).Msg("Loading rules...")
		svc := service.NewProvisioningService(path)
		if err := svc.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("initializing: %w", err)
		}
		st := svc.Status()
		log.Info().
			Int("rules", st.RuleCount).
			Int("externals", st.ExternalCount).
			Bool("disable_all_rules", st.DisableAllRules).
			Msg("Rules loaded")

		ctx, stopTasks := context.WithCancel(cmd.Context())
		defer stopTasks()

		taskManager := tasks.NewManager()
		taskManager.Register(ctx, CheckRulesTaskName, viper.GetDuration(CheckIntervalKey),
			func(ctx context.Context, logger logging.InternalLogger) error {
				return svc.CheckRules(ctx, logger)
			})

		// setup server
		srv := api.NewServer(svc, taskManager)

		server := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")
		stopTasks()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		taskManager.Wait()
		if err := svc.Terminate(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to terminate service")
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f.bindRulesFlag(serveCmd.Flags())

	serveCmd.Flags().String("listen", ":8080", "address to listen on")
	_ = viper.BindPFlag(ListenAddrKey, serveCmd.Flags().Lookup("listen"))

	serveCmd.Flags().Duration("check-interval", 0, "re-validate the rules on disk periodically (0 checks only when triggered)")
	_ = viper.BindPFlag(CheckIntervalKey, serveCmd.Flags().Lookup("check-interval"))
}
