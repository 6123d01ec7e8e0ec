package agentruntime

// StopReason indicates why the assistant stopped generating. Wire values
// are snake_case and fixed by the spec; they are not provider-specific —
// each adapter maps its own vocabulary onto these five.
type StopReason string

const (
	// StopEndTurn means the model finished normally with no further action requested.
	StopEndTurn StopReason = "stop"
	// StopLength means generation stopped because a token limit was reached.
	StopLength StopReason = "length"
	// StopToolUse means the model is requesting one or more tool calls.
	StopToolUse StopReason = "tool_use"
	// StopError means the provider call failed (transport, protocol, or retries exhausted).
	StopError StopReason = "error"
	// StopAborted means the activation's context was canceled.
	StopAborted StopReason = "aborted"
)
