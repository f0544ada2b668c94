// Package cli implements the slotwise command line. Local commands run the
// engine in-process; submit, list and status talk to a slotwise server.
package cli

import (
	"log/slog"
	"os"

	"github.com/me/slotwise/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking SLOTWISE_SERVER first.
func defaultServer() string {
	if s := os.Getenv("SLOTWISE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the slotwise CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slotwise",
		Short: "slotwise: constraint-based calendar scheduling",
		Long:  "slotwise places tasks on resource calendars under hard and soft constraints.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.Setup(flagLogLevel, flagLogFormat, flagDebug)
			if err != nil {
				return err
			}
			logger = l
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "slotwise server URL (or SLOTWISE_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newPlanCmd(),
		newValidateCmd(),
		newMetricsCmd(),
		newSlotsCmd(),
		newSubmitCmd(),
		newListCmd(),
		newStatusCmd(),
	)

	return root
}
