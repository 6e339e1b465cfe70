package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"companion/internal/audit"
	"companion/internal/config"
	"companion/internal/peer"
	"companion/internal/proposal"
	"companion/internal/schedule"
	"companion/internal/store"
)

// proposalsCmd is the human-facing resolution surface: it lists what is
// pending and performs the exactly-once accept/decline/withdraw transition.
var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List and resolve pending event proposals",
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List this peer's proposals and committed events",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, st, err := loadPeer()
		if err != nil {
			return err
		}
		defer st.Close()

		pending := p.PendingProposals()
		if len(pending) == 0 {
			fmt.Println("no pending proposals")
		}
		for _, pr := range pending {
			fmt.Printf("%s  %q from %s at %s (%s)\n",
				pr.ID, pr.Title, pr.Proposer, pr.Start.Format(schedule.TimeLayout), pr.Status)
		}

		for _, ev := range p.CommittedEvents() {
			fmt.Printf("committed: %q %s/%s\n",
				ev.Title, ev.Start.Format(schedule.TimeLayout), ev.End.Format(schedule.TimeLayout))
		}
		return nil
	},
}

var proposalsAcceptCmd = &cobra.Command{
	Use:   "accept <proposal-id>",
	Short: "Accept a pending proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return resolve(args[0], true) },
}

var proposalsDeclineCmd = &cobra.Command{
	Use:   "decline <proposal-id>",
	Short: "Decline a pending proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return resolve(args[0], false) },
}

var proposalsWithdrawCmd = &cobra.Command{
	Use:   "withdraw <proposal-id>",
	Short: "Withdraw a pending proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, st, err := loadPeer()
		if err != nil {
			return err
		}
		defer st.Close()

		outcome, err := p.WithdrawProposal(args[0])
		if err != nil {
			return err
		}
		fmt.Println(outcome.Message)
		return nil
	},
}

func resolve(id string, accept bool) error {
	p, st, err := loadPeer()
	if err != nil {
		return err
	}
	defer st.Close()

	outcome, err := p.ResolveProposal(id, accept)
	if err != nil {
		return err
	}
	fmt.Println(outcome.Message)
	if outcome.Status == proposal.StatusDeclined && outcome.Reason == proposal.ReasonConflict {
		fmt.Println("the slot was already committed; the proposal was declined instead")
	}
	return nil
}

// loadPeer rebuilds the peer from its store partition. Run this while the
// serve process is stopped; both share the same single-writer database.
func loadPeer() (*peer.Peer, *store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	prof, err := st.LoadProfile(cfg.Peer.ID)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("no profile for peer %q (run 'companion init' first): %w", cfg.Peer.ID, err)
	}
	log, err := audit.New(cfg.Logging.AuditPath, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	p, err := peer.New(cfg, prof, log, st, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return p, st, nil
}

func init() {
	proposalsCmd.AddCommand(proposalsListCmd)
	proposalsCmd.AddCommand(proposalsAcceptCmd)
	proposalsCmd.AddCommand(proposalsDeclineCmd)
	proposalsCmd.AddCommand(proposalsWithdrawCmd)
}
