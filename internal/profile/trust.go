package profile

// Denial reasons returned to callers. These are part of the wire contract:
// every operation returns the same shape for an untrusted caller.
const (
	ReasonNotTrusted        = "requester not in trusted contacts"
	ReasonCategoryNotShared = "category not shared with requester"
	ReasonPurposeNotAllowed = "purpose not allowed for requester"
)

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// allow is the singleton positive decision.
var allow = Decision{Allowed: true}

// deny builds a denial with the given reason.
func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Gate answers whether a caller may invoke an operation on this peer, and
// whether it may see a given disclosure category. It is a pure lookup
// against the local profile: no side effects, and it must run before any
// operation touches state.
type Gate struct {
	profile *Profile
}

// NewGate creates a gate over the peer's own profile.
func NewGate(p *Profile) *Gate {
	return &Gate{profile: p}
}

// Authorize checks that the caller is a trusted contact. The operation name
// is recorded by callers for auditing; trust is not per-operation.
func (g *Gate) Authorize(callerID, operation string) Decision {
	if !g.profile.Trusts(callerID) {
		return deny(ReasonNotTrusted)
	}
	return allow
}

// AuthorizeCategory checks trust and then that the requested category is in
// the caller's sharing rules. A caller absent from the rules is denied for
// all categories.
func (g *Gate) AuthorizeCategory(callerID, category string) Decision {
	if d := g.Authorize(callerID, "share_context"); !d.Allowed {
		return d
	}
	if !g.profile.SharesCategory(callerID, category) {
		return deny(ReasonCategoryNotShared)
	}
	return allow
}
