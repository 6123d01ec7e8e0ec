package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/agentruntime"
)

// Interface compliance check.
var _ agentruntime.ToolExecutor = (*ToolExecutor)(nil)

// ToolExecutor is a test double for agentruntime.ToolExecutor.
// Set ExecuteFn before calling Execute.
type ToolExecutor struct {
	ExecuteFn func(ctx context.Context, callID, name string, args json.RawMessage, onUpdate func(partial *agentruntime.ToolResult)) (*agentruntime.ToolResult, error)
}

// Execute delegates to ExecuteFn.
func (e *ToolExecutor) Execute(ctx context.Context, callID, name string, args json.RawMessage, onUpdate func(partial *agentruntime.ToolResult)) (*agentruntime.ToolResult, error) {
	return e.ExecuteFn(ctx, callID, name, args, onUpdate)
}
