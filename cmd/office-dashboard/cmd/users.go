package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/smart-office/internal/service/dashboard"
)

// faceImage is the image registered with a new user.
var faceImage string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users known to the face recognition service.",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dashboard.ListUsers(cmd.Context(), &dashboard.UsersOptions{
			ConfigPath: configPath,
			Out:        cmd.OutOrStdout(),
		})
	},
}

var usersRegisterCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Register a face image under a username.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboard.RegisterUser(cmd.Context(), &dashboard.UsersOptions{
			ConfigPath: configPath,
			Username:   args[0],
			ImagePath:  faceImage,
			Out:        cmd.OutOrStdout(),
		})
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a registered user.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboard.DeleteUser(cmd.Context(), &dashboard.UsersOptions{
			ConfigPath: configPath,
			Username:   args[0],
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	usersRegisterCmd.Flags().StringVarP(&faceImage, "image", "i", "", "face image to register")
	_ = usersRegisterCmd.MarkFlagRequired("image")

	usersCmd.AddCommand(usersListCmd, usersRegisterCmd, usersDeleteCmd)
}
