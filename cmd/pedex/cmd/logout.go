package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pedex/cmd/internal/app"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored credential and revoke it on the platform",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, ok := a.Credentials().Read(cmd.Context()); !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
			return nil
		}
		a.Controller().Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}
