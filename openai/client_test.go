package openai

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	sdk "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwojciec/agentruntime"
)

// stubChatClient implements ChatClient, capturing the last request body and
// replaying a canned chunk sequence for CreateChatCompletionStream.
type stubChatClient struct {
	lastReq   sdk.ChatCompletionRequest
	chunks    []sdk.ChatCompletionStreamResponse
	streamErr error
}

func (s *stubChatClient) CreateChatCompletionStream(_ context.Context, req sdk.ChatCompletionRequest) (ChatCompletionStream, error) {
	s.lastReq = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return &fakeChatStream{chunks: s.chunks}, nil
}

func minimalChunks() []sdk.ChatCompletionStreamResponse {
	return []sdk.ChatCompletionStreamResponse{
		{Choices: []sdk.ChatCompletionStreamChoice{{FinishReason: sdk.FinishReasonStop}}},
	}
}

func TestClient_Stream_RequestFormat(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub)

	temp := 0.7
	s, err := c.Stream(context.Background(), agentruntime.Request{
		Model:        "gpt-4o",
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

	assert.Equal(t, "gpt-4o", stub.lastReq.Model)
	assert.Equal(t, 1024, stub.lastReq.MaxTokens)
	assert.True(t, stub.lastReq.Stream)
	require.NotNil(t, stub.lastReq.StreamOptions)
	assert.True(t, stub.lastReq.StreamOptions.IncludeUsage)
	assert.InDelta(t, 0.7, stub.lastReq.Temperature, 0.0001)
	require.Len(t, stub.lastReq.Messages, 4) // system + 3
	assert.Equal(t, sdk.ChatMessageRoleSystem, stub.lastReq.Messages[0].Role)
	require.Len(t, stub.lastReq.Tools, 1)
	assert.Equal(t, "auto", stub.lastReq.ToolChoice)
}

func TestClient_Stream_DefaultModelAndMaxTokens(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, defaultModel, stub.lastReq.Model)
	assert.Equal(t, defaultMaxTokens, stub.lastReq.MaxTokens)
}

func TestClient_Stream_ToolResultMessagesNotMerged(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
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

	require.Len(t, stub.lastReq.Messages, 4)
	assert.Equal(t, sdk.ChatMessageRoleTool, stub.lastReq.Messages[2].Role)
	assert.Equal(t, "tc_1", stub.lastReq.Messages[2].ToolCallID)
	assert.Equal(t, sdk.ChatMessageRoleTool, stub.lastReq.Messages[3].Role)
	assert.Equal(t, "tc_2", stub.lastReq.Messages[3].ToolCallID)
}

func TestClient_Stream_ImageBlockConversion(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{
				agentruntime.TextBlock{Text: "what is this"},
				agentruntime.ImageBlock{Data: []byte("PNG"), MimeType: "image/png"},
			}},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, stub.lastReq.Messages, 1)
	parts := stub.lastReq.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, sdk.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, sdk.ChatMessagePartTypeImageURL, parts[1].Type)
	require.NotNil(t, parts[1].ImageURL)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/png;base64,")
}

func TestClient_Stream_ToolResultIsErrorContentPassedThrough(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
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

	toolMsg := stub.lastReq.Messages[2]
	assert.Equal(t, "permission denied", toolMsg.Content)
}

func TestClient_Stream_ReasoningEffortSelection(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
		ThinkingLevel: agentruntime.ThinkingMedium,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "medium", stub.lastReq.ReasoningEffort)
}

func TestClient_Stream_ThinkingOffOmitsReasoningEffort(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub)

	s, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "", stub.lastReq.ReasoningEffort)
}

func TestClient_Stream_UnsupportedThinkingLevel(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub)
	delete(c.reasoningEfforts, agentruntime.ThinkingMedium)

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

	stub := &stubChatClient{chunks: minimalChunks()}
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

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub)

	_, err := c.Stream(context.Background(), agentruntime.Request{})
	require.Error(t, err)
}

func TestClient_Stream_PropagatesStreamError(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{streamErr: io.ErrUnexpectedEOF}
	c := New(stub)

	_, err := c.Stream(context.Background(), agentruntime.Request{
		Messages: []agentruntime.Message{
			agentruntime.UserMessage{Content: []agentruntime.ContentBlock{agentruntime.TextBlock{Text: "Hi"}}},
		},
	})
	require.Error(t, err) // go-openai errors at construction, unlike anthropic's lazy connect
}

func TestClient_Stream_MistralEnablesToolIDNormalization(t *testing.T) {
	t.Parallel()

	stub := &stubChatClient{chunks: minimalChunks()}
	c := New(stub, WithAPITag(MistralAPITag), WithToolIDNormalization())

	assert.True(t, c.normalizeToolIDs)
	assert.Equal(t, MistralAPITag, c.apiTag)
}
