package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/service/dashboard"
	"github.com/oshokin/smart-office/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// storeAddress overrides the office-store address from config.
	storeAddress string

	// rootCmd represents the base command for running the dashboard backend.
	rootCmd = &cobra.Command{
		Use:   "office-dashboard [listen-address]",
		Short: "Run the smart office dashboard backend.",
		Long: `Mirrors the office state from the realtime store and serves it over HTTP.

The dashboard subscribes to door, light, temperature and garbage values, raises
garbage, temperature and gas alerts, and unlocks the door after a successful
face verification. State changes and notifications are pushed over /ws.
Listen address can be provided as argument to override config (e.g., :8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return dashboard.Run(ctx, &dashboard.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StoreAddress:  storeAddress,
			})
		},
	}
)

// Execute runs the office-dashboard CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(verifyCmd, usersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&storeAddress, "store", "a", "", "office-store address (overrides config)")
}
