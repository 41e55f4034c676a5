package cmd

import (
	"fmt"
	"os"

	"github.com/fenilmodi00/ipo-admin/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Global config, loaded before any command runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ipo-admin",
	Short: "Admin service for IPO listings",
	Long: `ipo-admin serves the IPO admin dashboard API: it normalizes backend IPO
records for display and editing, derives schedules and listing gains, and
submits edits back to the IPO backend.

Running it without a command starts the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.LogLevel = level
		}
		cfg.Unified().ConfigureLogging()
		// Tool commands print results on stdout
		if cmd.HasParent() && cmd.Name() != "serve" {
			logrus.SetOutput(cmd.ErrOrStderr())
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(healthCmd)
}

// Execute runs the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Debug("Command failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
