package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-office/internal/service/client"
)

// serverAddress overrides the store address for get and set.
var serverAddress string

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the stored value of a key.",
	Long: `Reads one key from the configured store and prints it as JSON.

Keys: door_status, led_status, temperature, garbage_level. Unset keys print null.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return client.Get(ctx, &client.Options{
			ConfigPath:    configPath,
			ServerAddress: serverAddress,
			Key:           args[0],
			Out:           cmd.OutOrStdout(),
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a value and wait until the store confirms it.",
	Long: `Writes one key to the configured store.

Boolean keys take true or false, numeric keys take a number, any key takes null to reset it.
The value is pushed again every second until the store reads it back or the command is interrupted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return client.Set(ctx, &client.Options{
			ConfigPath:    configPath,
			ServerAddress: serverAddress,
			Key:           args[0],
			Value:         args[1],
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	for _, c := range []*cobra.Command{getCmd, setCmd} {
		c.Flags().StringVarP(&serverAddress, "address", "a", "", "office-store address (overrides config)")
	}
}
