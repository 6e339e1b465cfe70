// Package peer assembles one companion peer: the profile and its trust
// gate, the availability matcher, the proposal machine, the disclosure
// filter, and the JSON-RPC server exposing the four coordination tools.
// A peer is a single-owner actor: all state access funnels through it.
package peer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"companion/internal/audit"
	"companion/internal/config"
	"companion/internal/profile"
	"companion/internal/proposal"
	"companion/internal/schedule"
	"companion/internal/store"
	"companion/internal/tools"
)

// Peer is one autonomous process acting for one human.
type Peer struct {
	cfg      *config.Config
	profile  *profile.Profile
	gate     *profile.Gate
	filter   *profile.Filter
	machine  *proposal.Machine
	registry *tools.Registry
	log      *audit.Log
	st       *store.Store
	logger   *zap.Logger
	clock    func() time.Time

	mu    sync.Mutex
	inbox []string
}

// New assembles a peer from its config and profile. st may be nil for an
// ephemeral peer (tests); otherwise proposals and committed events are
// restored from and persisted to it.
func New(cfg *config.Config, prof *profile.Profile, log *audit.Log, st *store.Store, logger *zap.Logger) (*Peer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	gate := profile.NewGate(prof)
	filter := profile.NewFilter(prof, gate)
	if cfg.Sharing.EnforcePurpose {
		filter.EnforcePurpose(cfg.Sharing.AllowedPurposes)
	}

	machine := proposal.NewMachine(cfg.Peer.ID, cfg.Peer.Name, cfg.AutoAcceptAllowed, logger)

	p := &Peer{
		cfg:      cfg,
		profile:  prof,
		gate:     gate,
		filter:   filter,
		machine:  machine,
		registry: tools.NewRegistry(logger),
		log:      log,
		st:       st,
		logger:   logger,
		clock:    time.Now,
	}

	if st != nil {
		proposals, err := st.LoadProposals(cfg.Peer.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to restore proposals: %w", err)
		}
		committed, err := st.LoadCommittedEvents(cfg.Peer.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to restore committed events: %w", err)
		}
		machine.Restore(proposals, committed)
	}

	p.registerTools()
	return p, nil
}

// ID returns this peer's id.
func (p *Peer) ID() string {
	return p.cfg.Peer.ID
}

// Registry exposes the tool surface for the server.
func (p *Peer) Registry() *tools.Registry {
	return p.registry
}

// InteractionLog returns the peer's interaction log.
func (p *Peer) InteractionLog() *audit.Log {
	return p.log
}

// SetClock overrides the peer's clock. Test hook, propagated to the machine.
func (p *Peer) SetClock(now func() time.Time) {
	p.clock = now
	p.machine.SetClock(now)
}

// ResolveProposal performs the exactly-once accept/decline transition on a
// pending proposal. This is the peer-local resolution path invoked by the
// human-facing surface, not a remote tool.
func (p *Peer) ResolveProposal(id string, accept bool) (proposal.Outcome, error) {
	outcome, err := p.machine.Resolve(id, accept)
	if err != nil {
		return outcome, err
	}
	p.persistProposal(id)
	return outcome, nil
}

// CounterProposal terminally closes a pending proposal with alternatives.
func (p *Peer) CounterProposal(id string, alternatives []schedule.Slot) (proposal.Outcome, error) {
	outcome, err := p.machine.Counter(id, alternatives)
	if err != nil {
		return outcome, err
	}
	p.persistProposal(id)
	return outcome, nil
}

// WithdrawProposal cancels a pending proposal (declined, reason withdrawn).
func (p *Peer) WithdrawProposal(id string) (proposal.Outcome, error) {
	outcome, err := p.machine.Withdraw(id)
	if err != nil {
		return outcome, err
	}
	p.persistProposal(id)
	return outcome, nil
}

// PendingProposals lists proposals awaiting resolution.
func (p *Peer) PendingProposals() []proposal.Proposal {
	return p.machine.Pending()
}

// CommittedEvents lists this peer's committed events.
func (p *Peer) CommittedEvents() []proposal.CommittedEvent {
	return p.machine.Committed()
}

// Messages drains the queued notification messages (relayed messages and
// proposal notifications awaiting the next human interaction).
func (p *Peer) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.inbox
	p.inbox = nil
	return out
}

func (p *Peer) queueMessage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbox = append(p.inbox, msg)
}

// persistProposal writes the proposal's current state, and its committed
// event when accepted, to the store.
func (p *Peer) persistProposal(id string) {
	if p.st == nil {
		return
	}
	prop, ok := p.machine.Get(id)
	if !ok {
		return
	}
	if err := p.st.SaveProposal(p.cfg.Peer.ID, prop); err != nil {
		p.logger.Warn("failed to persist proposal", zap.String("proposal_id", id), zap.Error(err))
	}
	if prop.Status == proposal.StatusAccepted {
		ev := proposal.CommittedEvent{
			ProposalID: prop.ID,
			Title:      prop.Title,
			Start:      prop.Start,
			End:        prop.End(),
		}
		if err := p.st.SaveCommittedEvent(p.cfg.Peer.ID, ev); err != nil {
			p.logger.Warn("failed to persist committed event", zap.String("proposal_id", id), zap.Error(err))
		}
	}
}

// denial is the uniform response for an unauthorized caller. Every
// operation returns this same shape so callers cannot probe for structure
// differences.
func denial(reason string) map[string]any {
	return map[string]any{"access_denied": reason}
}

// invalidInput reports a malformed argument. Faults of this kind are
// call-local and never mutate state.
func invalidInput(msg string) map[string]any {
	return map[string]any{"error": "invalid input", "message": msg}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// intArg reads a numeric argument. JSON numbers decode as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
