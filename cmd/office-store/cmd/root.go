package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/service/store"
	"github.com/oshokin/smart-office/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where store values are persisted.
	stateFile string
	// simulate overrides the simulator cron schedule.
	simulate string

	// rootCmd represents the base command for running the store server.
	rootCmd = &cobra.Command{
		Use:   "office-store [listen-address]",
		Short: "Run the realtime office state store.",
		Long: `Starts the gRPC realtime store holding door, light, temperature and garbage values.

Every write is fanned out to watchers, so dashboards see changes as they happen.
Only the port from the store address in the config is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:50051).
Values are persisted to a JSON file for recovery across restarts.
With a simulate schedule the store also drifts temperature and garbage level like real sensors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return store.Run(ctx, &store.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				Simulate:      simulate,
			})
		},
	}
)

// Execute runs the office-store CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(getCmd, setCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist store values (overrides config)")
	rootCmd.Flags().StringVar(&simulate, "simulate", "", "cron schedule for the sensor simulator, e.g. \"@every 5s\"")
}
