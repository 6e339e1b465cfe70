package peer

import (
	"context"
	"fmt"
	"time"

	"companion/internal/schedule"
	"companion/internal/tools"
)

// Invoker calls a tool on the remote peer. Satisfied by remote.Client.
type Invoker interface {
	Invoke(ctx context.Context, operation string, args map[string]any) (map[string]any, error)
}

// MutualSlots reconciles availability with the remote peer: it computes this
// peer's own candidate slots, asks the remote peer for its slots over the
// same timeframe, and intersects the two sets. An empty result means no
// mutual slot exists; that is a negotiation outcome, not an error.
func (p *Peer) MutualSlots(ctx context.Context, remote Invoker, timeframe, eventType string, duration time.Duration) ([]schedule.Slot, error) {
	local := p.computeCandidates(timeframe, duration)

	result, err := remote.Invoke(ctx, tools.NameCheckAvailability, map[string]any{
		"timeframe":        timeframe,
		"event_type":       eventType,
		"duration_minutes": int(duration.Minutes()),
		"requester":        p.cfg.Peer.ID,
	})
	if err != nil {
		return nil, err
	}
	if reason, denied := result["access_denied"]; denied {
		return nil, fmt.Errorf("remote peer denied availability check: %v", reason)
	}

	theirs := decodeSlots(result["slots"])
	return schedule.Intersect(local, theirs, duration), nil
}

// decodeSlots parses the wire form of a check_availability slots field,
// skipping entries with malformed times.
func decodeSlots(v any) []schedule.Slot {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]schedule.Slot, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		startStr, _ := m["start"].(string)
		endStr, _ := m["end"].(string)
		start, err1 := schedule.ParseTime(startStr)
		end, err2 := schedule.ParseTime(endStr)
		if err1 != nil || err2 != nil || !start.Before(end) {
			continue
		}
		flex, _ := m["flexibility"].(string)
		if flex == "" {
			flex = string(schedule.FlexibilityMedium)
		}
		out = append(out, schedule.Slot{
			Start:       start,
			End:         end,
			Flexibility: schedule.Flexibility(flex),
		})
	}
	return out
}
