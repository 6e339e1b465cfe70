package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"companion/internal/audit"
	"companion/internal/config"
	"companion/internal/remote"
)

var callArgsJSON string

// callCmd stands in for the reasoning layer: it emits one structured tool
// call to the remote peer and prints the structured result.
var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Invoke a tool on the remote peer",
	Long: `Invoke one of the remote peer's tools (check_availability,
propose_event, share_context, relay_message) with JSON arguments.
The requester/sender field defaults to this peer's id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		toolArgs := map[string]any{}
		if callArgsJSON != "" {
			if err := json.Unmarshal([]byte(callArgsJSON), &toolArgs); err != nil {
				return fmt.Errorf("invalid --args JSON: %w", err)
			}
		}
		if _, ok := toolArgs["requester"]; !ok {
			toolArgs["requester"] = cfg.Peer.ID
		}
		if _, ok := toolArgs["sender"]; !ok {
			toolArgs["sender"] = cfg.Peer.ID
		}

		log, err := audit.New(cfg.Logging.AuditPath, logger)
		if err != nil {
			return err
		}
		defer log.Close()

		client := remote.New(cfg.Peer.ID, cfg.Remote.ID, cfg.Remote.Endpoint,
			cfg.Remote.CallTimeout(), cfg.Remote.CallRetryPause(), log, logger)

		result, err := client.Invoke(cmd.Context(), args[0], toolArgs)
		if err != nil {
			// Unreachable must read differently from a denial: "we
			// couldn't reach them" is not "they said no".
			if errors.Is(err, remote.ErrPeerUnreachable) {
				fmt.Fprintf(os.Stderr, "peer %s is unreachable (tried twice): %v\n", cfg.Remote.ID, err)
				os.Exit(2)
			}
			return err
		}

		if reason, denied := result["access_denied"]; denied {
			fmt.Printf("peer %s denied the request: %v\n", cfg.Remote.ID, reason)
			return nil
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	callCmd.Flags().StringVarP(&callArgsJSON, "args", "a", "", "tool arguments as a JSON object")
}
