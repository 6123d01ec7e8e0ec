package agentruntime

import (
	"context"
	"encoding/json"
)

// Tool is the schema sent to the LLM describing a tool's capabilities.
// Label is a short human-readable name shown in UIs; it carries no
// protocol meaning and adapters never send it to the provider.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Label       string
}

// ToolExecutor runs tools. Execute returns error for infrastructure failures.
// ToolResult.IsError indicates tool-reported domain failures sent back to
// the LLM. callID identifies the specific tool call (for correlating
// ToolExecutionUpdate events); onUpdate, if non-nil, is invoked zero or more
// times with a partial result before the final return. Implementations
// must observe ctx cancellation cooperatively; there is no forced
// termination.
type ToolExecutor interface {
	Execute(ctx context.Context, callID, name string, args json.RawMessage, onUpdate func(partial *ToolResult)) (*ToolResult, error)
}

// ToolResult represents the outcome of a tool execution.
type ToolResult struct {
	Content []ContentBlock
	Details json.RawMessage
	IsError bool
}
