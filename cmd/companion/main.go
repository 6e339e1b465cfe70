// companion runs one autonomous peer that negotiates shared plans with the
// single remote peer it trusts, with no central coordinator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "companion - autonomous peer-to-peer plan negotiation",
	Long: `companion runs one peer process acting on behalf of one human.

Each peer exposes four trust-gated tools (check_availability,
propose_event, share_context, relay_message) over HTTP/JSON-RPC 2.0 and
invokes the same tools on the peer it trusts. Availability is reconciled
by slot intersection; proposals move through a strict lifecycle with
terminal acceptance or decline; every cross-peer call lands in an
append-only interaction log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "companion.yaml", "path to peer config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(proposalsCmd)
	rootCmd.AddCommand(planCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
