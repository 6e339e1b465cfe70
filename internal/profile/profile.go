// Package profile holds a peer's own identity and the per-contact policy
// that gates every inbound tool call. A profile is owned exclusively by its
// peer process: remote calls may read filtered views of it but never write.
package profile

// Disclosure categories understood by the sharing rules.
const (
	CategoryAvailability = "availability"
	CategoryCuisine      = "cuisine_preferences"
	CategoryDietary      = "dietary"
	CategorySchedule     = "schedule"
)

// Profile is one human's context: preferences, busy schedule, and the trust
// and sharing policy applied to contacts.
type Profile struct {
	PeerID      string `json:"peer_id"`
	DisplayName string `json:"display_name"`

	// Preferences maps category keys to values, e.g.
	// "cuisine" -> ["Italian", "Thai"], "dining_times" -> ["19:00", "19:30"].
	Preferences map[string][]string `json:"preferences"`

	// BusySlots are half-open ISO 8601 ranges ("start/end") the peer
	// cannot be scheduled into.
	BusySlots []string `json:"busy_slots"`

	// TrustedContacts lists peer ids permitted to invoke operations.
	TrustedContacts []string `json:"trusted_contacts"`

	// SharingRules maps contact id to the disclosure categories that
	// contact may see. A missing contact denies everything; an explicit
	// empty list also denies everything and is the preferred way to say
	// "trusted but shares nothing".
	SharingRules map[string][]string `json:"sharing_rules"`
}

// Trusts reports whether the given peer id is a trusted contact.
func (p *Profile) Trusts(peerID string) bool {
	for _, c := range p.TrustedContacts {
		if c == peerID {
			return true
		}
	}
	return false
}

// AllowedCategories returns the disclosure categories shared with a contact.
// Returns nil for an unknown contact; callers must treat nil and empty
// identically (deny).
func (p *Profile) AllowedCategories(peerID string) []string {
	return p.SharingRules[peerID]
}

// SharesCategory reports whether a specific category is shared with a contact.
func (p *Profile) SharesCategory(peerID, category string) bool {
	for _, c := range p.SharingRules[peerID] {
		if c == category {
			return true
		}
	}
	return false
}

// DiningTimes returns the preferred start times ("HH:MM"), if any.
func (p *Profile) DiningTimes() []string {
	return p.Preferences["dining_times"]
}
