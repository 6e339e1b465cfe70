// Package proposal owns the lifecycle of a coordination attempt, from first
// proposal to terminal acceptance or decline. Status is a closed set of
// variants with explicit transition functions; invalid transitions are
// rejected, never silently overwritten.
package proposal

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusCountered Status = "countered"
)

// Terminal reports whether the status admits no further transitions.
// A countered proposal is terminal for its id: continuing the negotiation
// requires a fresh proposal, which prevents ambiguous double-acceptance.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusCountered
}

// Decline reasons used by the machine.
const (
	ReasonConflict  = "conflict"
	ReasonWithdrawn = "withdrawn"
	ReasonCountered = "countered"
)

// Sentinel errors for lifecycle violations.
var (
	// ErrInvalidTransition is returned when a resolution is attempted on
	// a proposal whose status is already terminal.
	ErrInvalidTransition = errors.New("proposal is terminal, no further transition permitted")

	// ErrUnknownProposal is returned for an id the machine has never seen.
	ErrUnknownProposal = errors.New("unknown proposal id")

	// ErrDuplicateProposal is returned when a proposal id is reused.
	ErrDuplicateProposal = errors.New("proposal id already exists")
)

// Proposal is one negotiation attempt between two peers. The recipient's
// machine is the authoritative owner of Status; the proposer only applies
// the returned status, never invents one.
type Proposal struct {
	ID           string        `json:"proposal_id"`
	Proposer     string        `json:"proposer_id"`
	Recipient    string        `json:"recipient_id"`
	Title        string        `json:"title"`
	EventType    string        `json:"event_type"`
	Start        time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	Location     string        `json:"location"`
	Participants []string      `json:"participants"`
	Status       Status        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// End returns the proposed end time.
func (p *Proposal) End() time.Time {
	return p.Start.Add(p.Duration)
}

// CommittedEvent is an accepted proposal materialized into the peer's own
// busy state. Two accepted proposals can never occupy the same peer's same
// time range; the machine checks this at acceptance time.
type CommittedEvent struct {
	ProposalID string    `json:"proposal_id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
}

// Overlaps reports whether the committed event intersects [start, end).
func (e CommittedEvent) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && start.Before(e.End)
}
