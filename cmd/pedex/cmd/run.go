package cmd

import (
	"github.com/spf13/cobra"

	"pedex/cmd/internal/app"
)

var quiet bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resume the stored session and keep it in sync until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !quiet {
			printBanner(cmd.ErrOrStderr())
		}
		return app.Run(cfg, log)
	},
}

func init() {
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip the startup banner")
}
