// Package cmd holds the pedex command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pedex/cmd/internal/app"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var (
	cfg app.Config
	log app.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pedex",
	Short: "pedex keeps an investment-platform session and its live feed in sync",
	Long: `pedex signs in to the platform, keeps the access token fresh, and mirrors
transaction history, trade history and the current price from the live channel.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := app.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		log = app.NewLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.AddCommand(runCmd, loginCmd, logoutCmd, statusCmd)
}
