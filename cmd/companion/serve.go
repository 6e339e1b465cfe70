package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"companion/internal/audit"
	"companion/internal/config"
	"companion/internal/peer"
	"companion/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this peer's tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		prof, err := st.LoadProfile(cfg.Peer.ID)
		if err != nil {
			return fmt.Errorf("no profile for peer %q (run 'companion init' first): %w", cfg.Peer.ID, err)
		}

		log, err := audit.New(cfg.Logging.AuditPath, logger)
		if err != nil {
			return err
		}
		defer log.Close()

		p, err := peer.New(cfg, prof, log, st, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting peer",
			zap.String("peer", cfg.Peer.ID),
			zap.String("listen", cfg.Peer.Listen),
			zap.String("remote", cfg.Remote.Endpoint))

		srv := peer.NewServer(p, cfg.Peer.Listen, logger)
		return srv.Serve(ctx)
	},
}
