package remote

import "errors"

var (
	// ErrPeerUnreachable is returned after both the original call and its
	// single retry failed. It is distinct from a denial: the caller can
	// tell "they said no" apart from "we couldn't reach them".
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrInvocation is returned for protocol-level faults from a
	// reachable peer (malformed response, unknown tool).
	ErrInvocation = errors.New("invocation failed")
)
