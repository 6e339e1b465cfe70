package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"companion/internal/config"
	"companion/internal/remote"
	"companion/internal/schedule"
	"companion/internal/tools"
)

var (
	planEventType string
	planDuration  int
	planPropose   bool
	planEventName string
	planLocation  string
)

// planCmd runs the availability reconciliation step of a negotiation: both
// peers' candidate slots are computed and intersected, and optionally the
// best mutual slot is proposed to the remote peer.
var planCmd = &cobra.Command{
	Use:   "plan <timeframe>",
	Short: "Find mutual availability with the remote peer",
	Long: `Compute this peer's candidate slots for the timeframe, ask the
remote peer for its slots, and print the intersection. Timeframes are ISO
8601 ranges ("2024-12-07T12:00:00/2024-12-07T22:00:00") or phrases like
"this weekend". With --propose, the best mutual slot is proposed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		p, st, err := loadPeer()
		if err != nil {
			return err
		}
		defer st.Close()

		client := remote.New(cfg.Peer.ID, cfg.Remote.ID, cfg.Remote.Endpoint,
			cfg.Remote.CallTimeout(), cfg.Remote.CallRetryPause(), p.InteractionLog(), logger)

		duration := planDuration
		if duration <= 0 {
			duration = cfg.Coordination.DefaultDurationMinutes
		}

		mutual, err := p.MutualSlots(cmd.Context(), client, args[0], planEventType,
			time.Duration(duration)*time.Minute)
		if err != nil {
			return err
		}
		if len(mutual) == 0 {
			fmt.Println("no mutual slots found in that timeframe")
			return nil
		}

		for _, s := range mutual {
			fmt.Printf("%s/%s  (%s)\n",
				s.Start.Format(schedule.TimeLayout), s.End.Format(schedule.TimeLayout), s.Flexibility)
		}

		if !planPropose {
			return nil
		}

		best := mutual[0]
		result, err := client.Invoke(cmd.Context(), tools.NameProposeEvent, map[string]any{
			"event_name":       orDefault(planEventName, planEventType),
			"event_type":       planEventType,
			"datetime":         best.Start.Format(schedule.TimeLayout),
			"duration_minutes": duration,
			"location":         planLocation,
			"requester":        cfg.Peer.ID,
		})
		if err != nil {
			return err
		}
		fmt.Printf("proposed %s: %v\n", best.Start.Format(schedule.TimeLayout), result["message"])
		return nil
	},
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	planCmd.Flags().StringVarP(&planEventType, "event-type", "t", "dinner", "type of event to plan")
	planCmd.Flags().IntVarP(&planDuration, "duration", "d", 0, "event duration in minutes (default from config)")
	planCmd.Flags().BoolVarP(&planPropose, "propose", "p", false, "propose the best mutual slot")
	planCmd.Flags().StringVar(&planEventName, "name", "", "event title (defaults to the event type)")
	planCmd.Flags().StringVar(&planLocation, "location", "", "event location")
}
