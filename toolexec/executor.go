// Package toolexec drives a batch of tool calls produced by one assistant
// message through an agentruntime.ToolExecutor, sequentially, with a
// per-call timeout and steering-interruption semantics: once any call in
// the batch completes, a caller-supplied drain is consulted, and if it
// yields queued messages the remaining calls in the batch are synthesized
// as skipped rather than executed.
package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fwojciec/agentruntime"
)

// Executor runs the tool calls in one assistant message.
type Executor struct {
	tools   agentruntime.ToolExecutor
	timeout time.Duration
	now     func() time.Time
}

// New creates an Executor. A zero timeout means no per-call deadline is
// applied beyond ctx's own.
func New(tools agentruntime.ToolExecutor, timeout time.Duration) *Executor {
	return &Executor{tools: tools, timeout: timeout, now: time.Now}
}

// DrainFunc returns currently queued steering messages, or nil/empty if
// none are pending. It is consulted after every completed call.
type DrainFunc func() []agentruntime.Message

// Run executes calls sequentially against the configured ToolExecutor.
// emit, if non-nil, receives ToolExecutionStart/Update/End events as they
// occur. drain, if non-nil, is polled after each completed call; the first
// non-empty result interrupts the remaining calls in the batch, which are
// synthesized as skipped results, and is returned as steering.
func (e *Executor) Run(ctx context.Context, calls []agentruntime.ToolCallBlock, emit func(agentruntime.LoopEvent), drain DrainFunc) (results []agentruntime.ToolResultMessage, steering []agentruntime.Message) {
	for i, call := range calls {
		if ctx.Err() != nil {
			break
		}

		push(emit, agentruntime.EventToolExecutionStart{CallID: call.ID, Name: call.Name})

		result, isError := e.execute(ctx, call, emit)

		push(emit, agentruntime.EventToolExecutionEnd{CallID: call.ID, Result: result, Skipped: false})

		results = append(results, agentruntime.ToolResultMessage{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    result.Content,
			Details:    result.Details,
			IsError:    isError,
			Timestamp:  e.now(),
		})

		if drain == nil {
			continue
		}
		pending := drain()
		if len(pending) == 0 {
			continue
		}
		steering = pending
		for _, skipped := range calls[i+1:] {
			results = append(results, e.skip(skipped, emit))
		}
		break
	}
	return results, steering
}

func (e *Executor) execute(ctx context.Context, call agentruntime.ToolCallBlock, emit func(agentruntime.LoopEvent)) (*agentruntime.ToolResult, bool) {
	callCtx := ctx
	cancel := func() {}
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	onUpdate := func(partial *agentruntime.ToolResult) {
		push(emit, agentruntime.EventToolExecutionUpdate{CallID: call.ID, Partial: partial})
	}

	result, err := e.tools.Execute(callCtx, call.ID, call.Name, call.Arguments, onUpdate)
	if err == nil {
		return result, result.IsError
	}

	if errors.Is(err, context.DeadlineExceeded) && callCtx.Err() != nil && ctx.Err() == nil {
		return &agentruntime.ToolResult{
			Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "tool timed out"}},
			Details: timeoutDetails(e.timeout),
		}, true
	}
	if errors.Is(err, context.Canceled) {
		return &agentruntime.ToolResult{
			Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "tool execution was cancelled"}},
		}, true
	}
	return &agentruntime.ToolResult{
		Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: err.Error()}},
	}, true
}

func (e *Executor) skip(call agentruntime.ToolCallBlock, emit func(agentruntime.LoopEvent)) agentruntime.ToolResultMessage {
	push(emit, agentruntime.EventToolExecutionStart{CallID: call.ID, Name: call.Name})
	push(emit, agentruntime.EventToolExecutionEnd{CallID: call.ID, Skipped: true})

	return agentruntime.ToolResultMessage{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Skipped due to queued user message."}},
		IsError:    true,
		Timestamp:  e.now(),
	}
}

func push(emit func(agentruntime.LoopEvent), e agentruntime.LoopEvent) {
	if emit != nil {
		emit(e)
	}
}

func timeoutDetails(timeout time.Duration) json.RawMessage {
	raw, err := json.Marshal(map[string]any{"timeout_ms": timeout.Milliseconds()})
	if err != nil {
		return nil
	}
	return raw
}
