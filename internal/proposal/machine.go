package proposal

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"companion/internal/schedule"
)

// AutoAcceptFunc decides whether a proposal from the given contact with the
// given event type is accepted without human review. This is peer-local
// policy, never negotiated.
type AutoAcceptFunc func(proposer, eventType string) bool

// Outcome is the structured result of a lifecycle operation, applied
// verbatim by the proposer to its own copy.
type Outcome struct {
	ProposalID   string          `json:"proposal_id"`
	Status       Status          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Message      string          `json:"message"`
	Alternatives []schedule.Slot `json:"alternatives,omitempty"`
}

// Machine owns all proposals and committed events for one peer. A single
// logical owner touches it per the actor model; the mutex guards the HTTP
// server's handler goroutines.
type Machine struct {
	mu         sync.Mutex
	ownerID    string
	ownerName  string
	proposals  map[string]*Proposal
	committed  []CommittedEvent
	autoAccept AutoAcceptFunc
	logger     *zap.Logger
	now        func() time.Time
}

// NewMachine creates a proposal machine for the named peer. autoAccept may
// be nil, meaning nothing is auto-accepted.
func NewMachine(ownerID, ownerName string, autoAccept AutoAcceptFunc, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		ownerID:    ownerID,
		ownerName:  ownerName,
		proposals:  make(map[string]*Proposal),
		autoAccept: autoAccept,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the machine's clock. Test hook.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

// Receive handles an inbound propose_event call that already passed the
// trust gate. It checks the proposed interval against committed events,
// applies auto-accept policy, and otherwise leaves the proposal pending for
// external resolution.
func (m *Machine) Receive(p *Proposal) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := m.proposals[p.ID]; exists {
		return Outcome{}, fmt.Errorf("%w: %s", ErrDuplicateProposal, p.ID)
	}
	p.Recipient = m.ownerID
	p.CreatedAt = m.now()

	if conflict, ok := m.conflictLocked(p.Start, p.End()); ok {
		p.Status = StatusDeclined
		p.Reason = ReasonConflict
		m.proposals[p.ID] = p
		m.logger.Info("proposal declined on conflict",
			zap.String("proposal_id", p.ID),
			zap.String("proposer", p.Proposer),
			zap.Time("conflicting_start", conflict.Start))
		return Outcome{
			ProposalID: p.ID,
			Status:     StatusDeclined,
			Reason:     ReasonConflict,
			Message: fmt.Sprintf("%s already has an event scheduled at %s. Please propose a different time.",
				m.ownerName, conflict.Start.Format(schedule.TimeLayout)),
		}, nil
	}

	if m.autoAccept != nil && m.autoAccept(p.Proposer, p.EventType) {
		p.Status = StatusAccepted
		m.proposals[p.ID] = p
		m.commitLocked(p)
		m.logger.Info("proposal auto-accepted",
			zap.String("proposal_id", p.ID),
			zap.String("proposer", p.Proposer),
			zap.String("event_type", p.EventType))
		return Outcome{
			ProposalID: p.ID,
			Status:     StatusAccepted,
			Message:    fmt.Sprintf("Event %q has been automatically accepted.", p.Title),
		}, nil
	}

	p.Status = StatusPending
	m.proposals[p.ID] = p
	m.logger.Info("proposal pending review",
		zap.String("proposal_id", p.ID),
		zap.String("proposer", p.Proposer))
	return Outcome{
		ProposalID: p.ID,
		Status:     StatusPending,
		Message:    fmt.Sprintf("Event %q has been proposed and is awaiting %s's review.", p.Title, m.ownerName),
	}, nil
}

// Resolve performs the exactly-once accept/decline transition on a pending
// proposal. Accepting re-checks conflicts: a slot committed since the
// proposal arrived yields a declined outcome with reason "conflict", never
// an acceptance. Resolving a terminal proposal returns ErrInvalidTransition.
func (m *Machine) Resolve(id string, accept bool) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[id]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownProposal, id)
	}
	if p.Status.Terminal() {
		return Outcome{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, p.Status)
	}

	if !accept {
		p.Status = StatusDeclined
		return Outcome{
			ProposalID: id,
			Status:     StatusDeclined,
			Message:    fmt.Sprintf("Event %q was declined.", p.Title),
		}, nil
	}

	if conflict, ok := m.conflictLocked(p.Start, p.End()); ok {
		p.Status = StatusDeclined
		p.Reason = ReasonConflict
		m.logger.Warn("acceptance refused, slot committed since proposal arrived",
			zap.String("proposal_id", id),
			zap.Time("conflicting_start", conflict.Start))
		return Outcome{
			ProposalID: id,
			Status:     StatusDeclined,
			Reason:     ReasonConflict,
			Message:    fmt.Sprintf("Event %q conflicts with a committed event and was declined.", p.Title),
		}, nil
	}

	p.Status = StatusAccepted
	m.commitLocked(p)
	return Outcome{
		ProposalID: id,
		Status:     StatusAccepted,
		Message:    fmt.Sprintf("Event %q was accepted.", p.Title),
	}, nil
}

// Counter terminally closes a pending proposal and hands back alternative
// slots. The original id is dead after this: the proposer must mint a fresh
// proposal to continue, so the same id can never be accepted later.
func (m *Machine) Counter(id string, alternatives []schedule.Slot) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[id]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownProposal, id)
	}
	if p.Status.Terminal() {
		return Outcome{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, p.Status)
	}

	p.Status = StatusCountered
	p.Reason = ReasonCountered
	return Outcome{
		ProposalID:   id,
		Status:       StatusCountered,
		Reason:       ReasonCountered,
		Message:      fmt.Sprintf("Event %q was countered with %d alternative slot(s). Propose again with a new id to continue.", p.Title, len(alternatives)),
		Alternatives: alternatives,
	}, nil
}

// Withdraw cancels a pending proposal, transitioning it to declined with
// reason "withdrawn". There is no automatic expiry; this is the explicit
// cancellation path.
func (m *Machine) Withdraw(id string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[id]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownProposal, id)
	}
	if p.Status.Terminal() {
		return Outcome{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, p.Status)
	}

	p.Status = StatusDeclined
	p.Reason = ReasonWithdrawn
	return Outcome{
		ProposalID: id,
		Status:     StatusDeclined,
		Reason:     ReasonWithdrawn,
		Message:    fmt.Sprintf("Event %q was withdrawn by its proposer.", p.Title),
	}, nil
}

// Get returns a copy of a proposal.
func (m *Machine) Get(id string) (Proposal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return Proposal{}, false
	}
	return *p, true
}

// Pending returns copies of all pending proposals, oldest first.
func (m *Machine) Pending() []Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Proposal
	for _, p := range m.proposals {
		if p.Status == StatusPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Committed returns a copy of the peer's committed events.
func (m *Machine) Committed() []CommittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CommittedEvent, len(m.committed))
	copy(out, m.committed)
	return out
}

// BusyIntervals exposes committed events as schedule intervals so the
// availability matcher excludes them alongside the profile's busy slots.
func (m *Machine) BusyIntervals() []schedule.Interval {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schedule.Interval, 0, len(m.committed))
	for _, e := range m.committed {
		out = append(out, schedule.Interval{Start: e.Start, End: e.End})
	}
	return out
}

// Restore rehydrates machine state from the store at startup.
func (m *Machine) Restore(proposals []Proposal, committed []CommittedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range proposals {
		p := proposals[i]
		m.proposals[p.ID] = &p
	}
	m.committed = append(m.committed, committed...)
}

func (m *Machine) conflictLocked(start, end time.Time) (CommittedEvent, bool) {
	for _, e := range m.committed {
		if e.Overlaps(start, end) {
			return e, true
		}
	}
	return CommittedEvent{}, false
}

func (m *Machine) commitLocked(p *Proposal) {
	m.committed = append(m.committed, CommittedEvent{
		ProposalID: p.ID,
		Title:      p.Title,
		Start:      p.Start,
		End:        p.End(),
	})
}
