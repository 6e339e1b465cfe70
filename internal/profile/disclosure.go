package profile

// Filter mediates requests for categorized personal data. It returns only
// the profile fields belonging to the requested category, and only when the
// gate allows that category for the caller.
type Filter struct {
	profile *Profile
	gate    *Gate

	// enforcePurpose makes the purpose string part of authorization.
	// When false (the default), purpose is informational only.
	enforcePurpose  bool
	allowedPurposes map[string][]string
}

// NewFilter creates a disclosure filter over a profile and its gate.
func NewFilter(p *Profile, g *Gate) *Filter {
	return &Filter{profile: p, gate: g}
}

// EnforcePurpose turns on purpose checking with the given per-contact
// allow-list. A contact missing from the list is denied for all purposes.
func (f *Filter) EnforcePurpose(allowed map[string][]string) {
	f.enforcePurpose = true
	f.allowedPurposes = allowed
}

// Disclose returns the fields of the requested category, or a denial.
// The payload never contains fields from other categories, even when they
// are stored alongside the requested ones.
func (f *Filter) Disclose(callerID, category, purpose string) (map[string]any, Decision) {
	if d := f.gate.AuthorizeCategory(callerID, category); !d.Allowed {
		return nil, d
	}
	if f.enforcePurpose && !f.purposeAllowed(callerID, purpose) {
		return nil, deny(ReasonPurposeNotAllowed)
	}

	payload := map[string]any{}
	switch category {
	case CategoryAvailability:
		payload["dining_times"] = stringsOrEmpty(f.profile.Preferences["dining_times"])
		payload["weekend_availability"] = firstOrEmpty(f.profile.Preferences["weekend_availability"])
	case CategoryCuisine:
		payload["cuisine"] = stringsOrEmpty(f.profile.Preferences["cuisine"])
	case CategoryDietary:
		payload["dietary"] = stringsOrEmpty(f.profile.Preferences["dietary"])
	case CategorySchedule:
		busy := f.profile.BusySlots
		if busy == nil {
			busy = []string{}
		}
		payload["busy_slots"] = busy
	default:
		// Unknown categories can never appear in sharing rules that the
		// gate accepted, but guard anyway.
		return nil, deny(ReasonCategoryNotShared)
	}
	return payload, allow
}

func (f *Filter) purposeAllowed(callerID, purpose string) bool {
	for _, p := range f.allowedPurposes[callerID] {
		if p == purpose {
			return true
		}
	}
	return false
}

func stringsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func firstOrEmpty(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
