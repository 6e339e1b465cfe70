package profile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiscloseCategoryScoped(t *testing.T) {
	t.Parallel()

	f := NewFilter(aliceProfile(), NewGate(aliceProfile()))

	payload, d := f.Disclose("bob", CategoryCuisine, "dinner_planning")
	if !d.Allowed {
		t.Fatalf("denied: %q", d.Reason)
	}

	want := map[string]any{"cuisine": []string{"Italian", "Thai", "Sushi"}}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	// No fields from other categories leak into the payload.
	for _, k := range []string{"dietary", "busy_slots", "dining_times"} {
		if _, ok := payload[k]; ok {
			t.Errorf("cuisine payload leaks %q", k)
		}
	}
}

func TestDiscloseDietaryOnlyContact(t *testing.T) {
	t.Parallel()

	p := aliceProfile()
	f := NewFilter(p, NewGate(p))

	// Carol may see dietary and nothing else, even though the profile holds
	// cuisine and schedule data too.
	payload, d := f.Disclose("carol", CategoryDietary, "")
	if !d.Allowed {
		t.Fatalf("denied: %q", d.Reason)
	}
	want := map[string]any{"dietary": []string{"vegetarian"}}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	if _, d := f.Disclose("carol", CategoryCuisine, ""); d.Allowed {
		t.Error("carol must not see cuisine")
	}
	if _, d := f.Disclose("carol", CategorySchedule, ""); d.Allowed {
		t.Error("carol must not see schedule")
	}
}

func TestDiscloseDenialShapes(t *testing.T) {
	t.Parallel()

	p := aliceProfile()
	f := NewFilter(p, NewGate(p))

	payload, d := f.Disclose("mallory", CategoryCuisine, "")
	if d.Allowed || payload != nil {
		t.Errorf("untrusted caller: payload=%v allowed=%v", payload, d.Allowed)
	}
	if d.Reason != ReasonNotTrusted {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonNotTrusted)
	}

	payload, d = f.Disclose("dave", CategoryCuisine, "")
	if d.Allowed || payload != nil {
		t.Errorf("empty-rule caller: payload=%v allowed=%v", payload, d.Allowed)
	}
	if d.Reason != ReasonCategoryNotShared {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonCategoryNotShared)
	}
}

func TestDiscloseScheduleCategory(t *testing.T) {
	t.Parallel()

	p := aliceProfile()
	p.SharingRules["bob"] = append(p.SharingRules["bob"], CategorySchedule)
	f := NewFilter(p, NewGate(p))

	payload, d := f.Disclose("bob", CategorySchedule, "")
	if !d.Allowed {
		t.Fatalf("denied: %q", d.Reason)
	}
	busy, ok := payload["busy_slots"].([]string)
	if !ok || len(busy) != 1 {
		t.Errorf("busy_slots = %v", payload["busy_slots"])
	}
}

func TestDisclosePurposeEnforcement(t *testing.T) {
	t.Parallel()

	p := aliceProfile()
	f := NewFilter(p, NewGate(p))

	// Purpose is informational by default.
	if _, d := f.Disclose("bob", CategoryCuisine, "anything at all"); !d.Allowed {
		t.Fatalf("purpose must not gate by default: %q", d.Reason)
	}

	f.EnforcePurpose(map[string][]string{"bob": {"dinner_planning"}})

	if _, d := f.Disclose("bob", CategoryCuisine, "dinner_planning"); !d.Allowed {
		t.Errorf("allowed purpose denied: %q", d.Reason)
	}
	_, d := f.Disclose("bob", CategoryCuisine, "marketing")
	if d.Allowed {
		t.Fatal("disallowed purpose must be denied")
	}
	if d.Reason != ReasonPurposeNotAllowed {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonPurposeNotAllowed)
	}

	// Trust and category checks still run first.
	if _, d := f.Disclose("mallory", CategoryCuisine, "dinner_planning"); d.Reason != ReasonNotTrusted {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonNotTrusted)
	}
}

func TestDiscloseEmptyPreferences(t *testing.T) {
	t.Parallel()

	p := &Profile{
		PeerID:          "bob",
		TrustedContacts: []string{"alice"},
		SharingRules:    map[string][]string{"alice": {CategoryAvailability}},
	}
	f := NewFilter(p, NewGate(p))

	payload, d := f.Disclose("alice", CategoryAvailability, "")
	if !d.Allowed {
		t.Fatalf("denied: %q", d.Reason)
	}
	// Missing preferences disclose as empty values, never nil.
	if payload["dining_times"] == nil {
		t.Error("dining_times must be an empty slice, not nil")
	}
}
