package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-office/internal/service/dashboard"
)

// imagePath is verified instead of a camera frame when set.
var imagePath string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a face once and unlock the door if it is recognized.",
	Long: `Captures a frame from the configured camera, or reads --image, and submits it
to the face recognition service. A recognized face opens the door through the store.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return dashboard.Verify(ctx, &dashboard.VerifyOptions{
			ConfigPath:   configPath,
			StoreAddress: storeAddress,
			ImagePath:    imagePath,
			Out:          cmd.OutOrStdout(),
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	verifyCmd.Flags().StringVarP(&imagePath, "image", "i", "", "image file to verify instead of a camera frame")
}
