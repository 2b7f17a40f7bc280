// file: cmd/token-manager/cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"token-manager/config"
	"token-manager/internal/app"
	"token-manager/internal/lifecycle"
	"token-manager/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run --config <token-manager.yaml>",
	Short: "Start refreshing tokens until interrupted",
	Long: `The run command starts one token provider per resolved registration and keeps
every token fresh until SIGINT or SIGTERM. SIGHUP reloads the configuration file and
restarts all providers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		logLevel, _ := cmd.Flags().GetString("log-level")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		load := func() (*config.Config, error) {
			cfg, err := config.Load(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
			cfg.ApplyOverrides(logLevel, metricsAddr)
			if err := config.Validate(cfg); err != nil {
				return nil, fmt.Errorf("invalid config after overrides: %w", err)
			}
			return cfg, nil
		}

		cfg, err := load()
		if err != nil {
			return err
		}

		// Lifecycle messages go to a logger that outlives each app instance
		lifecycleLogger, err := logger.NewLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer lifecycleLogger.Sync()

		lifecycleLogger.Info("token-manager starting", "config", configPath)

		createApp := func() (lifecycle.Application, error) {
			cfg, err := load()
			if err != nil {
				return nil, err
			}
			return app.NewTokenManagerApp(cfg)
		}

		return lifecycle.RunWithReload(createApp, lifecycleLogger)
	},
}

func init() {
	addConfigFlag(runCmd.Flags())
	runCmd.Flags().String("log-level", "", "Override logging.level (debug, info, warn, error)")
	runCmd.Flags().String("metrics-addr", "", "Enable metrics and listen on this address")
}
