package agentruntime_test

import (
	"testing"

	"github.com/fwojciec/agentruntime"
	"github.com/stretchr/testify/assert"
)

func TestLoopEventTypeSwitch_Exhaustive(t *testing.T) {
	t.Parallel()

	events := []agentruntime.LoopEvent{
		agentruntime.EventAgentStart{},
		agentruntime.EventTurnStart{},
		agentruntime.EventMessageStart{},
		agentruntime.EventMessageUpdate{Event: agentruntime.EventTextDelta{Index: 0, Delta: "hi"}},
		agentruntime.EventMessageEnd{Message: agentruntime.AssistantMessage{}},
		agentruntime.EventToolExecutionStart{CallID: "call_1", Name: "bash"},
		agentruntime.EventToolExecutionUpdate{CallID: "call_1", Partial: &agentruntime.ToolResult{}},
		agentruntime.EventToolExecutionEnd{CallID: "call_1", Result: &agentruntime.ToolResult{}},
		agentruntime.EventTurnEnd{Message: agentruntime.AssistantMessage{}},
		agentruntime.EventAgentEnd{NewMessages: []agentruntime.Message{agentruntime.UserMessage{}}},
	}
	assert.Len(t, events, 10)

	for _, e := range events {
		switch e.(type) {
		case agentruntime.EventAgentStart,
			agentruntime.EventTurnStart,
			agentruntime.EventMessageStart,
			agentruntime.EventMessageUpdate,
			agentruntime.EventMessageEnd,
			agentruntime.EventToolExecutionStart,
			agentruntime.EventToolExecutionUpdate,
			agentruntime.EventToolExecutionEnd,
			agentruntime.EventTurnEnd,
			agentruntime.EventAgentEnd:
			// recognized
		default:
			t.Fatalf("unhandled LoopEvent type: %T", e)
		}
	}
}

func TestEventToolExecutionEnd_Skipped(t *testing.T) {
	t.Parallel()

	e := agentruntime.EventToolExecutionEnd{CallID: "call_2", Skipped: true}
	assert.True(t, e.Skipped)
	assert.Nil(t, e.Result)
}
