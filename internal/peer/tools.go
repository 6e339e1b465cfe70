package peer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"companion/internal/profile"
	"companion/internal/proposal"
	"companion/internal/schedule"
	"companion/internal/tools"
)

// registerTools wires the four coordination operations into the registry.
// Authorization runs inside each handler, before any state is touched.
func (p *Peer) registerTools() {
	p.registry.MustRegister(&tools.Tool{
		Name:        tools.NameCheckAvailability,
		Description: "Check this peer's availability within a timeframe",
		Execute:     p.handleCheckAvailability,
		Schema: tools.Schema{
			Required: []string{"timeframe", "event_type", "duration_minutes", "requester"},
			Properties: map[string]tools.Property{
				"timeframe":        {Type: "string", Description: "ISO 8601 range or relative phrase like 'this weekend'"},
				"event_type":       {Type: "string", Description: "Type of event, e.g. dinner"},
				"duration_minutes": {Type: "integer", Description: "Event duration in minutes"},
				"requester":        {Type: "string", Description: "Peer id of the caller"},
			},
		},
	})

	p.registry.MustRegister(&tools.Tool{
		Name:        tools.NameProposeEvent,
		Description: "Propose a specific event to this peer",
		Execute:     p.handleProposeEvent,
		Schema: tools.Schema{
			Required: []string{"event_name", "datetime", "requester"},
			Properties: map[string]tools.Property{
				"event_name":   {Type: "string", Description: "Title of the event"},
				"datetime":     {Type: "string", Description: "ISO 8601 start time"},
				"location":     {Type: "string", Description: "Where the event happens"},
				"participants": {Type: "array", Description: "Peer ids attending"},
				"requester":    {Type: "string", Description: "Peer id of the proposer"},
			},
		},
	})

	p.registry.MustRegister(&tools.Tool{
		Name:        tools.NameShareContext,
		Description: "Request one category of this peer's context",
		Execute:     p.handleShareContext,
		Schema: tools.Schema{
			Required: []string{"category", "requester"},
			Properties: map[string]tools.Property{
				"category":  {Type: "string", Description: "Disclosure category", Enum: []any{profile.CategoryAvailability, profile.CategoryCuisine, profile.CategoryDietary, profile.CategorySchedule}},
				"purpose":   {Type: "string", Description: "Why the data is requested, recorded in the log"},
				"requester": {Type: "string", Description: "Peer id of the caller"},
			},
		},
	})

	p.registry.MustRegister(&tools.Tool{
		Name:        tools.NameRelayMessage,
		Description: "Relay a human-to-human message through this peer",
		Execute:     p.handleRelayMessage,
		Schema: tools.Schema{
			Required: []string{"message", "sender"},
			Properties: map[string]tools.Property{
				"message": {Type: "string", Description: "Message text"},
				"urgency": {Type: "string", Description: "Delivery urgency", Enum: []any{"low", "normal", "high"}},
				"sender":  {Type: "string", Description: "Peer id of the sending human's peer"},
			},
		},
	})
}

// handleCheckAvailability computes candidate slots inside the requested
// timeframe, excluding both profile busy slots and committed events, and
// returns preferences filtered by the caller's sharing rules.
func (p *Peer) handleCheckAvailability(ctx context.Context, args map[string]any) (map[string]any, error) {
	timeframe := stringArg(args, "timeframe")
	eventType := stringArg(args, "event_type")
	duration := intArg(args, "duration_minutes")
	requester := stringArg(args, "requester")

	if timeframe == "" {
		return invalidInput("timeframe must be a non-empty string"), nil
	}
	if eventType == "" {
		return invalidInput("event_type must be a non-empty string"), nil
	}
	if duration <= 0 {
		return invalidInput("duration_minutes must be a positive integer"), nil
	}
	if requester == "" {
		return invalidInput("requester must be a non-empty string"), nil
	}

	if d := p.gate.Authorize(requester, tools.NameCheckAvailability); !d.Allowed {
		return denial(d.Reason), nil
	}

	slots := p.computeCandidates(timeframe, time.Duration(duration)*time.Minute)

	encoded := make([]map[string]any, 0, len(slots))
	for _, s := range slots {
		encoded = append(encoded, map[string]any{
			"start":       s.Start.Format(schedule.TimeLayout),
			"end":         s.End.Format(schedule.TimeLayout),
			"flexibility": string(s.Flexibility),
		})
	}

	return map[string]any{
		"available":            len(encoded) > 0,
		"slots":                encoded,
		"preferences":          p.sharedPreferences(requester),
		"auto_accept_eligible": p.cfg.AutoAcceptAllowed(requester, eventType),
	}, nil
}

// computeCandidates runs the availability matcher over the profile's busy
// slots plus the machine's committed events.
func (p *Peer) computeCandidates(timeframe string, duration time.Duration) []schedule.Slot {
	frame, err := schedule.ParseTimeframe(timeframe, p.clock())
	if err != nil {
		p.logger.Debug("unparseable timeframe", zap.String("timeframe", timeframe), zap.Error(err))
		return nil
	}

	busy := schedule.ParseBusySlots(p.profile.BusySlots)
	busy = append(busy, p.machine.BusyIntervals()...)

	return schedule.Candidates(frame, busy, duration, p.profile.DiningTimes(), p.cfg.Coordination.MaxSlots)
}

// sharedPreferences returns the preference categories the caller's sharing
// rules allow. Cuisine and dining times travel together under either the
// cuisine_preferences or availability category, matching the disclosure
// rules the original system applied to availability responses.
func (p *Peer) sharedPreferences(requester string) map[string]any {
	prefs := map[string]any{}
	if p.profile.SharesCategory(requester, profile.CategoryCuisine) ||
		p.profile.SharesCategory(requester, profile.CategoryAvailability) {
		if cuisine, ok := p.profile.Preferences["cuisine"]; ok {
			prefs["cuisine"] = cuisine
		}
		if times, ok := p.profile.Preferences["dining_times"]; ok {
			prefs["dining_times"] = times
		}
	}
	return prefs
}

// handleProposeEvent runs the proposal state machine for an inbound
// proposal: conflict check, auto-accept policy, otherwise pending.
func (p *Peer) handleProposeEvent(ctx context.Context, args map[string]any) (map[string]any, error) {
	eventName := stringArg(args, "event_name")
	datetime := stringArg(args, "datetime")
	location := stringArg(args, "location")
	participants := stringSliceArg(args, "participants")
	requester := stringArg(args, "requester")

	if eventName == "" {
		return invalidInput("event_name must be a non-empty string"), nil
	}
	if datetime == "" {
		return invalidInput("datetime must be a non-empty ISO 8601 string"), nil
	}
	if requester == "" {
		return invalidInput("requester must be a non-empty string"), nil
	}

	start, err := schedule.ParseTime(datetime)
	if err != nil {
		return invalidInput("datetime must be a valid ISO 8601 formatted string"), nil
	}

	if d := p.gate.Authorize(requester, tools.NameProposeEvent); !d.Allowed {
		return denial(d.Reason), nil
	}

	eventType := stringArg(args, "event_type")
	if eventType == "" {
		eventType = strings.ToLower(eventName)
	}
	duration := intArg(args, "duration_minutes")
	if duration <= 0 {
		duration = p.cfg.Coordination.DefaultDurationMinutes
	}

	outcome, err := p.machine.Receive(&proposal.Proposal{
		Proposer:     requester,
		Title:        eventName,
		EventType:    eventType,
		Start:        start,
		Duration:     time.Duration(duration) * time.Minute,
		Location:     location,
		Participants: participants,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive proposal: %w", err)
	}
	p.persistProposal(outcome.ProposalID)

	p.queueMessage(fmt.Sprintf("%s has proposed %s on %s at %s",
		requester, eventName, start.Format("2006-01-02 15:04"), orTBD(location)))

	return map[string]any{
		"status":      string(outcome.Status),
		"message":     outcome.Message,
		"proposal_id": outcome.ProposalID,
	}, nil
}

// handleShareContext delegates to the disclosure filter. The purpose string
// is recorded in the interaction log but by default does not affect the
// authorization decision.
func (p *Peer) handleShareContext(ctx context.Context, args map[string]any) (map[string]any, error) {
	category := stringArg(args, "category")
	purpose := stringArg(args, "purpose")
	requester := stringArg(args, "requester")

	if category == "" {
		return invalidInput("category must be a non-empty string"), nil
	}
	if requester == "" {
		return invalidInput("requester must be a non-empty string"), nil
	}

	payload, d := p.filter.Disclose(requester, category, purpose)
	if !d.Allowed {
		return denial(d.Reason), nil
	}
	return map[string]any{"context_data": payload}, nil
}

// handleRelayMessage queues a human-to-human message for the next
// interaction with this peer's human.
func (p *Peer) handleRelayMessage(ctx context.Context, args map[string]any) (map[string]any, error) {
	message := stringArg(args, "message")
	urgency := stringArg(args, "urgency")
	sender := stringArg(args, "sender")

	if message == "" {
		return invalidInput("message must be a non-empty string"), nil
	}
	if sender == "" {
		return invalidInput("sender must be a non-empty string"), nil
	}
	switch urgency {
	case "":
		urgency = "normal"
	case "low", "normal", "high":
	default:
		return invalidInput("urgency must be one of low, normal, high"), nil
	}

	if d := p.gate.Authorize(sender, tools.NameRelayMessage); !d.Allowed {
		return denial(d.Reason), nil
	}

	p.queueMessage(fmt.Sprintf("[%s] message from %s: %s", urgency, sender, message))
	return map[string]any{"delivered": true}, nil
}

func orTBD(s string) string {
	if s == "" {
		return "TBD"
	}
	return s
}
