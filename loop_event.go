package agentruntime

// LoopEvent is the outward event vocabulary emitted by an agent loop as it
// drives a conversation forward. Unlike Event (which an adapter emits while
// assembling a single AssistantMessage), LoopEvent spans a whole activation:
// turns, tool executions, and the adapter events nested inside a turn's
// message assembly.
type LoopEvent interface {
	loopEvent()
}

// EventAgentStart is emitted once when an activation begins.
type EventAgentStart struct{}

func (EventAgentStart) loopEvent() {}

// EventTurnStart is emitted at the start of every turn after the first.
// The first turn of an activation does not emit TurnStart, matching the
// algorithm's suppression of the initial transition.
type EventTurnStart struct{}

func (EventTurnStart) loopEvent() {}

// EventMessageStart is emitted when a message begins: either a queued
// message (steering, follow-up, or seed) being injected verbatim, or an
// assistant turn's stream opening.
type EventMessageStart struct {
	Message Message
}

func (EventMessageStart) loopEvent() {}

// EventMessageUpdate forwards one adapter-level streaming event alongside a
// snapshot of the assistant message assembled so far.
type EventMessageUpdate struct {
	Event   Event
	Message AssistantMessage
}

func (EventMessageUpdate) loopEvent() {}

// EventMessageEnd is emitted once a message is final: immediately for an
// injected queued message, or once an assistant turn completes (normally,
// or cut short by an error or abort).
type EventMessageEnd struct {
	Message Message
}

func (EventMessageEnd) loopEvent() {}

// EventToolExecutionStart is emitted before a tool call begins executing.
type EventToolExecutionStart struct {
	CallID string
	Name   string
}

func (EventToolExecutionStart) loopEvent() {}

// EventToolExecutionUpdate forwards a tool's partial-result callback.
type EventToolExecutionUpdate struct {
	CallID  string
	Partial *ToolResult
}

func (EventToolExecutionUpdate) loopEvent() {}

// EventToolExecutionEnd is emitted once a tool call's outcome is known.
// Skipped is true when the call was never executed because a steering
// message preempted the rest of the batch; Result is nil in that case.
type EventToolExecutionEnd struct {
	CallID  string
	Result  *ToolResult
	Skipped bool
}

func (EventToolExecutionEnd) loopEvent() {}

// EventTurnEnd is emitted once per turn, carrying the assistant message and
// any tool results produced during that turn.
type EventTurnEnd struct {
	Message     AssistantMessage
	ToolResults []ToolResultMessage
}

func (EventTurnEnd) loopEvent() {}

// EventAgentEnd is emitted once when the activation finishes, carrying every
// message appended to the session during the activation.
type EventAgentEnd struct {
	NewMessages []Message
}

func (EventAgentEnd) loopEvent() {}

var (
	_ LoopEvent = EventAgentStart{}
	_ LoopEvent = EventTurnStart{}
	_ LoopEvent = EventMessageStart{}
	_ LoopEvent = EventMessageUpdate{}
	_ LoopEvent = EventMessageEnd{}
	_ LoopEvent = EventToolExecutionStart{}
	_ LoopEvent = EventToolExecutionUpdate{}
	_ LoopEvent = EventToolExecutionEnd{}
	_ LoopEvent = EventTurnEnd{}
	_ LoopEvent = EventAgentEnd{}
)
