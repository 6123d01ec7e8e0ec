package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwojciec/agentruntime"
)

// stubMessagesClient implements MessagesClient, capturing the last request
// body for assertions and replaying a canned event sequence for NewStreaming.
type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	events     []ssestream.Event
	streamErr  error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return nil, nil
}

func (s *stubMessagesClient) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	s.lastParams = body
	dec := &testDecoder{events: s.events, err: s.streamErr}
	return ssestream.NewStream[sdk.MessageStreamEventUnion](dec, nil)
}

func minimalEvents() []ssestream.Event {
	return []ssestream.Event{
		{Type: "message_start", Data: []byte(`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"m","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":0}}}`)},
		{Type: "message_delta", Data: []byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":0}}`)},
		{Type: "message_stop", Data: []byte(`{"type":"message_stop"}`)},
	}
}

func TestClient_Stream_RequestFormat(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	temp := 0.7
	s, err := c.Stream(context.Background(), agentruntime.Request{
		Model:        "claude-opus-4-20250514",
		SystemPrompt: "You are helpful.",
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hello"}}},
			agentruntime.AssistantMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Thanks"}}},
		},
		Tools: []agentruntime.Tool{
			{Name: "read", Description: "Read a file", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
		MaxTokens:   1024,
		Temperature: &temp,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, sdk.Model("claude-opus-4-20250514"), stub.lastParams.Model)
	assert.Equal(t, int64(1024), stub.lastParams.MaxTokens)
	require.Len(t, stub.lastParams.System, 1)
	assert.Equal(t, "You are helpful.", stub.lastParams.System[0].Text)
	require.True(t, stub.lastParams.Temperature.Valid())
	assert.Equal(t, 0.7, stub.lastParams.Temperature.Value)
	require.Len(t, stub.lastParams.Messages, 3)
	require.Len(t, stub.lastParams.Tools, 1)
}

func TestClient_Stream_DefaultModelAndMaxTokens(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, sdk.Model(defaultModel), stub.lastParams.Model)
	assert.Equal(t, int64(defaultMaxTokens), stub.lastParams.MaxTokens)
}

func TestClient_Stream_ToolResultMessagesMerged(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
			agentruntime.AssistantMessage{Content: []agentruntime.ContentBlock{
				agentruntime.ToolCallBlock{ID: "tc_1", Name: "read", Arguments: json.RawMessage(`{"path":"a.go"}`)},
				agentruntime.ToolCallBlock{ID: "tc_2", Name: "read", Arguments: json.RawMessage(`{"path":"b.go"}`)},
			}},
			agentruntime.ToolResultMessage{ToolCallID: "tc_1", ToolName: "read", Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "file a"}}},
			agentruntime.ToolResultMessage{ToolCallID: "tc_2", ToolName: "read", Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "file b"}}},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, stub.lastParams.Messages, 3)
	merged := stub.lastParams.Messages[2]
	assert.Equal(t, sdk.MessageParamRoleUser, merged.Role)
	require.Len(t, merged.Content, 2)
}

func TestClient_Stream_ImageBlockConversion(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{
				agentruntime.ImageBlock{Data: []byte("PNG"), MimeType: "image/png"},
			}},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, stub.lastParams.Messages, 1)
	require.Len(t, stub.lastParams.Messages[0].Content, 1)
	img := stub.lastParams.Messages[0].Content[0].OfImage
	require.NotNil(t, img)
}

func TestClient_Stream_ToolResultIsError(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
			agentruntime.AssistantMessage{Content: []agentruntime.ContentBlock{
				agentruntime.ToolCallBlock{ID: "tc_1", Name: "bash", Arguments: json.RawMessage(`{"cmd":"rm -rf /"}`)},
			}},
			agentruntime.ToolResultMessage{
				ToolCallID: "tc_1",
				ToolName:   "bash",
				Content:    []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "permission denied"}},
				IsError:    true,
			},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	toolMsg := stub.lastParams.Messages[2]
	require.Len(t, toolMsg.Content, 1)
	result := toolMsg.Content[0].OfToolResult
	require.NotNil(t, result)
	require.True(t, result.IsError.Valid())
	assert.True(t, result.IsError.Value)
}

func TestClient_Stream_ThinkingBudgetSelection(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
		MaxTokens:     8192,
		ThinkingLevel: agentruntime.ThinkingMedium,
	})
	require.NoError(t, err)
	defer s.Close()

	require.True(t, stub.lastParams.Thinking.OfEnabled != nil)
	assert.Equal(t, int64(4096), stub.lastParams.Thinking.OfEnabled.BudgetTokens)
}

func TestClient_Stream_ThinkingBudgetMustBeBelowMaxTokens(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	_, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
		MaxTokens:     2048,
		ThinkingLevel: agentruntime.ThinkingHigh, // budget 8192 >= max_tokens 2048
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, agentruntime.ErrValidation)
}

func TestClient_Stream_UnsupportedThinkingLevel(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)
	delete(c.thinkingBudgets, agentruntime.ThinkingMedium)

	_, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
		ThinkingLevel: agentruntime.ThinkingMedium,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, agentruntime.ErrValidation)
}

func TestClient_Stream_ToolNameCollisionFails(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	_, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
		Tools: []agentruntime.Tool{
			{Name: "a.b", Parameters: json.RawMessage(`{}`)},
			{Name: "a_b", Parameters: json.RawMessage(`{}`)},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, agentruntime.ErrValidation)
}

func TestClient_Stream_NoMessagesRejected(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{events: minimalEvents()}
	c := New(stub)

	_, err := c.Stream(context.Background(), agentruntime.Request{})
	require.Error(t, err)
}

func TestClient_Stream_PropagatesStreamError(t *testing.T) {
	t.Parallel()

	stub := &stubMessagesClient{streamErr: io.ErrUnexpectedEOF}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
	})
	require.NoError(t, err) // error surfaces on first real Next(), not construction
	defer s.Close()

	_, err = s.Next() // EventStart
	require.NoError(t, err)
	ev, err := s.Next()
	require.NoError(t, err)
	errEv, ok := ev.(agentruntime.EventError)
	require.True(t, ok)
	assert.Equal(t, agentruntime.StopError, errEv.Reason)
}
