package proposal

import (
	"errors"
	"testing"
	"time"
)

func newTestMachine(autoAccept AutoAcceptFunc) *Machine {
	m := NewMachine("bob", "Bob", autoAccept, nil)
	m.SetClock(func() time.Time { return time.Date(2024, 12, 5, 9, 0, 0, 0, time.UTC) })
	return m
}

func dinnerProposal(id string, start time.Time) *Proposal {
	return &Proposal{
		ID:        id,
		Proposer:  "alice",
		Title:     "Dinner at Luigi's",
		EventType: "dinner",
		Start:     start,
		Duration:  2 * time.Hour,
		Location:  "Luigi's",
	}
}

func TestReceivePending(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	out, err := m.Receive(dinnerProposal("", time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if out.Status != StatusPending {
		t.Errorf("status = %s, want pending", out.Status)
	}
	if out.ProposalID == "" {
		t.Error("expected a minted proposal id")
	}

	pending := m.Pending()
	if len(pending) != 1 || pending[0].ID != out.ProposalID {
		t.Errorf("Pending() = %v, want the received proposal", pending)
	}
	if pending[0].Recipient != "bob" {
		t.Errorf("recipient = %q, want bob", pending[0].Recipient)
	}
}

func TestReceiveAutoAccept(t *testing.T) {
	t.Parallel()

	m := newTestMachine(func(proposer, eventType string) bool {
		return proposer == "alice" && eventType == "dinner"
	})

	out, err := m.Receive(dinnerProposal("", time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if out.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", out.Status)
	}

	committed := m.Committed()
	if len(committed) != 1 {
		t.Fatalf("got %d committed events, want 1", len(committed))
	}
	if committed[0].ProposalID != out.ProposalID {
		t.Errorf("committed event id = %q, want %q", committed[0].ProposalID, out.ProposalID)
	}
}

func TestReceiveAutoAcceptOtherContact(t *testing.T) {
	t.Parallel()

	m := newTestMachine(func(proposer, eventType string) bool {
		return proposer == "carol"
	})

	out, err := m.Receive(dinnerProposal("", time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if out.Status != StatusPending {
		t.Errorf("status = %s, want pending when policy does not match", out.Status)
	}
}

func TestReceiveConflictDeclines(t *testing.T) {
	t.Parallel()

	m := newTestMachine(func(string, string) bool { return true })
	start := time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)

	if _, err := m.Receive(dinnerProposal("", start)); err != nil {
		t.Fatalf("first Receive error: %v", err)
	}

	// Second proposal overlapping the committed slot is declined, not errored.
	out, err := m.Receive(dinnerProposal("", start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("second Receive error: %v", err)
	}
	if out.Status != StatusDeclined || out.Reason != ReasonConflict {
		t.Errorf("got status=%s reason=%q, want declined/conflict", out.Status, out.Reason)
	}
	if len(m.Committed()) != 1 {
		t.Errorf("conflicting proposal must not commit: %d events", len(m.Committed()))
	}
}

func TestReceiveDuplicateID(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	start := time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)

	if _, err := m.Receive(dinnerProposal("p1", start)); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	_, err := m.Receive(dinnerProposal("p1", start.Add(24*time.Hour)))
	if !errors.Is(err, ErrDuplicateProposal) {
		t.Errorf("err = %v, want ErrDuplicateProposal", err)
	}
}

func TestResolveAccept(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	out, _ := m.Receive(dinnerProposal("", time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)))

	res, err := m.Resolve(out.ProposalID, true)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.Status != StatusAccepted {
		t.Errorf("status = %s, want accepted", res.Status)
	}
	if len(m.Committed()) != 1 {
		t.Errorf("got %d committed events, want 1", len(m.Committed()))
	}
}

func TestResolveIsExactlyOnce(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	out, _ := m.Receive(dinnerProposal("", time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)))

	if _, err := m.Resolve(out.ProposalID, true); err != nil {
		t.Fatalf("first Resolve error: %v", err)
	}

	// Accepted is terminal: a second resolution of either kind fails.
	if _, err := m.Resolve(out.ProposalID, true); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second accept err = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.Resolve(out.ProposalID, false); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("decline after accept err = %v, want ErrInvalidTransition", err)
	}
	if len(m.Committed()) != 1 {
		t.Errorf("double resolution must not double-commit: %d events", len(m.Committed()))
	}
}

func TestResolveAcceptRechecksConflict(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	start := time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)

	first, _ := m.Receive(dinnerProposal("", start))
	second, _ := m.Receive(dinnerProposal("", start.Add(30*time.Minute)))

	if _, err := m.Resolve(first.ProposalID, true); err != nil {
		t.Fatalf("accept first error: %v", err)
	}

	// The slot was committed after the second proposal arrived; accepting it
	// now yields a declined outcome, never a double booking.
	res, err := m.Resolve(second.ProposalID, true)
	if err != nil {
		t.Fatalf("accept second error: %v", err)
	}
	if res.Status != StatusDeclined || res.Reason != ReasonConflict {
		t.Errorf("got status=%s reason=%q, want declined/conflict", res.Status, res.Reason)
	}
	if len(m.Committed()) != 1 {
		t.Errorf("got %d committed events, want 1", len(m.Committed()))
	}
}

func TestResolveUnknown(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	if _, err := m.Resolve("nope", true); !errors.Is(err, ErrUnknownProposal) {
		t.Errorf("err = %v, want ErrUnknownProposal", err)
	}
}

func TestCounterIsTerminal(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	out, _ := m.Receive(dinnerProposal("", time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)))

	res, err := m.Counter(out.ProposalID, nil)
	if err != nil {
		t.Fatalf("Counter error: %v", err)
	}
	if res.Status != StatusCountered {
		t.Errorf("status = %s, want countered", res.Status)
	}

	// The countered id can never be accepted afterwards.
	if _, err := m.Resolve(out.ProposalID, true); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("accept after counter err = %v, want ErrInvalidTransition", err)
	}
}

func TestWithdraw(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	out, _ := m.Receive(dinnerProposal("", time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)))

	res, err := m.Withdraw(out.ProposalID)
	if err != nil {
		t.Fatalf("Withdraw error: %v", err)
	}
	if res.Status != StatusDeclined || res.Reason != ReasonWithdrawn {
		t.Errorf("got status=%s reason=%q, want declined/withdrawn", res.Status, res.Reason)
	}
	if len(m.Pending()) != 0 {
		t.Error("withdrawn proposal still pending")
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	m := newTestMachine(nil)
	start := time.Date(2024, 12, 7, 19, 0, 0, 0, time.UTC)
	m.Restore(
		[]Proposal{{ID: "p1", Proposer: "alice", Title: "Dinner", Start: start, Duration: 2 * time.Hour, Status: StatusPending}},
		[]CommittedEvent{{ProposalID: "p0", Title: "Brunch", Start: start.Add(-8 * time.Hour), End: start.Add(-6 * time.Hour)}},
	)

	if _, ok := m.Get("p1"); !ok {
		t.Error("restored proposal not found")
	}
	if len(m.BusyIntervals()) != 1 {
		t.Errorf("got %d busy intervals, want 1", len(m.BusyIntervals()))
	}

	// Restored commitments participate in conflict checks.
	out, err := m.Receive(dinnerProposal("", start.Add(-7*time.Hour)))
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if out.Status != StatusDeclined {
		t.Errorf("status = %s, want declined against restored commitment", out.Status)
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusAccepted, StatusDeclined, StatusCountered} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
}
