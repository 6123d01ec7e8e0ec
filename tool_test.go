package agentruntime_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/agentruntime"
	"github.com/stretchr/testify/assert"
)

func TestTool_Fields(t *testing.T) {
	t.Parallel()
	schema := json.RawMessage(`{"type": "object", "properties": {"path": {"type": "string"}}}`)
	tool := agentruntime.Tool{
		Name:        "read",
		Description: "Read a file",
		Parameters:  schema,
		Label:       "Read",
	}
	assert.Equal(t, "read", tool.Name)
	assert.Equal(t, "Read a file", tool.Description)
	assert.Equal(t, "Read", tool.Label)
	assert.JSONEq(t, `{"type": "object", "properties": {"path": {"type": "string"}}}`, string(tool.Parameters))
}

func TestToolResult_Fields(t *testing.T) {
	t.Parallel()
	result := agentruntime.ToolResult{
		Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "file contents"}},
		IsError: false,
	}
	assert.Len(t, result.Content, 1)
	assert.False(t, result.IsError)
}

func TestToolResult_Error(t *testing.T) {
	t.Parallel()
	result := agentruntime.ToolResult{
		Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "file not found"}},
		IsError: true,
	}
	assert.True(t, result.IsError)
}

func TestToolResult_Details(t *testing.T) {
	t.Parallel()
	result := agentruntime.ToolResult{
		Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "timed out"}},
		Details: json.RawMessage(`{"timeout_ms":5000}`),
		IsError: true,
	}
	assert.JSONEq(t, `{"timeout_ms":5000}`, string(result.Details))
}
