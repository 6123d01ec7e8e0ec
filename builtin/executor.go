package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fwojciec/agentruntime"
	pipeexec "github.com/fwojciec/agentruntime/exec"
	"github.com/fwojciec/agentruntime/fs"
)

// Compile-time interface check.
var _ agentruntime.ToolExecutor = (*Executor)(nil)

// Executor dispatches tool calls to the fs package's file tools and the
// exec package's backgrounding-capable bash tool.
type Executor struct {
	bash *pipeexec.BashExecutor
}

// NewExecutor creates an Executor with a fresh bash background registry.
func NewExecutor() *Executor {
	return &Executor{bash: pipeexec.NewBashExecutor()}
}

// Execute dispatches a tool call by name. callID and onUpdate are accepted
// to satisfy agentruntime.ToolExecutor; none of these tools stream partial
// results, so onUpdate is unused. Returns an infrastructure error for
// unknown tool names.
func (e *Executor) Execute(ctx context.Context, _ string, name string, args json.RawMessage, _ func(partial *agentruntime.ToolResult)) (*agentruntime.ToolResult, error) {
	switch name {
	case "bash":
		return e.bash.Execute(ctx, args)
	case "read":
		return fs.ExecuteRead(ctx, args)
	case "write":
		return fs.ExecuteWrite(ctx, args)
	case "edit":
		return fs.ExecuteEdit(ctx, args)
	case "grep":
		return fs.ExecuteGrep(ctx, args)
	case "glob":
		return fs.ExecuteGlob(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// Tools returns the tool definitions for all built-in tools.
func (e *Executor) Tools() []agentruntime.Tool {
	return []agentruntime.Tool{
		pipeexec.BashExecutorTool(),
		fs.ReadTool(),
		fs.WriteTool(),
		fs.EditTool(),
		fs.GrepTool(),
		fs.GlobTool(),
	}
}
