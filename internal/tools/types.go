// Package tools defines the remotely invocable tool surface of a peer.
// Each coordination operation (check_availability, propose_event,
// share_context, relay_message) is registered as a named tool with an
// argument schema; the peer's JSON-RPC server dispatches inbound calls
// through the Registry.
package tools

import (
	"context"
)

// Tool names exposed by every peer.
const (
	NameCheckAvailability = "check_availability"
	NameProposeEvent      = "propose_event"
	NameShareContext      = "share_context"
	NameRelayMessage      = "relay_message"
)

// Property describes a single parameter for the tool's JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}

// Schema defines the expected arguments of a tool.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution. The returned map is the
// structured response sent back over the wire; errors are reserved for
// faults, not denials — a denial is a normal structured response.
type ExecuteFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool is one remotely invocable operation.
type Tool struct {
	// Name is the unique identifier callers use in tools/call.
	Name string

	// Description explains what the tool does, surfaced to callers
	// listing the tool surface.
	Description string

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema Schema
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Result wraps the outcome of a tool execution with timing metadata.
type Result struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Output is the structured response from the tool.
	Output map[string]any

	// Err is set if the tool faulted.
	Err error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without fault.
func (r *Result) IsSuccess() bool {
	return r.Err == nil
}

// Denied reports whether the output is an access denial.
func (r *Result) Denied() bool {
	if r.Output == nil {
		return false
	}
	_, ok := r.Output["access_denied"]
	return ok
}
