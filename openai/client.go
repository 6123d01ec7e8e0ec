package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/fwojciec/agentruntime"
)

// Stream sends a streaming request to the Chat Completions API and returns
// an [agentruntime.Stream] that emits semantic events as the response is
// assembled.
func (c *Client) Stream(ctx context.Context, req agentruntime.Request) (agentruntime.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.apiTag, err)
	}

	params, sanToCanon, err := c.prepareRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.apiTag, err)
	}

	sdkStream, err := c.chat.CreateChatCompletionStream(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.apiTag, err)
	}

	return newStream(ctx, sdkStream, params.Model, c.apiTag, c.normalizeToolIDs, sanToCanon, req.Cost), nil
}

func (c *Client) prepareRequest(req agentruntime.Request) (*sdk.ChatCompletionRequest, map[string]string, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}

	tools, canonToSan, sanToCanon, err := encodeTools(req.Tools)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := encodeMessages(req.SystemPrompt, req.Messages, canonToSan)
	if err != nil {
		return nil, nil, err
	}

	params := &sdk.ChatCompletionRequest{
		Model:         modelID,
		Messages:      msgs,
		MaxTokens:     maxTokens,
		Stream:        true,
		StreamOptions: &sdk.StreamOptions{IncludeUsage: true},
	}
	if len(tools) > 0 {
		params.Tools = tools
		params.ToolChoice = "auto"
	}
	if req.Temperature != nil {
		params.Temperature = float32(*req.Temperature)
	}

	if req.ThinkingLevel != "" && req.ThinkingLevel != agentruntime.ThinkingOff {
		effort, ok := c.reasoningEfforts[req.ThinkingLevel]
		if !ok {
			return nil, nil, fmt.Errorf("%s: unsupported thinking level %q: %w", c.apiTag, req.ThinkingLevel, agentruntime.ErrValidation)
		}
		params.ReasoningEffort = effort
	}

	return params, sanToCanon, nil
}

// encodeMessages translates the conversation history into Chat Completions
// messages. Unlike Anthropic's Messages API, tool results need no merging:
// each becomes its own role:"tool" message.
func encodeMessages(systemPrompt string, msgs []agentruntime.Message, canonToSan map[string]string) ([]sdk.ChatCompletionMessage, error) {
	result := make([]sdk.ChatCompletionMessage, 0, len(msgs)+1)
	if systemPrompt != "" {
		result = append(result, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleSystem, Content: systemPrompt})
	}

	for _, msg := range msgs {
		switch m := msg.(type) {
		case agentruntime.UserMessage:
			encoded, err := encodeUserMessage(m)
			if err != nil {
				return nil, err
			}
			result = append(result, encoded)

		case agentruntime.AssistantMessage:
			encoded, ok, err := encodeAssistantMessage(m, canonToSan)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, encoded)
			}

		case agentruntime.ToolResultMessage:
			result = append(result, encodeToolResult(m))

		default:
			return nil, fmt.Errorf("openai: unsupported message type %T", msg)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("openai: at least one message is required: %w", agentruntime.ErrValidation)
	}
	return result, nil
}

func encodeUserMessage(m agentruntime.UserMessage) (sdk.ChatCompletionMessage, error) {
	hasImage := false
	for _, b := range m.Content {
		if _, ok := b.(agentruntime.ImageBlock); ok {
			hasImage = true
			break
		}
	}

	if !hasImage {
		var text strings.Builder
		for _, b := range m.Content {
			tb, ok := b.(agentruntime.TextBlock)
			if !ok {
				return sdk.ChatCompletionMessage{}, fmt.Errorf("openai: unsupported content block type %T in user message", b)
			}
			text.WriteString(tb.Text)
		}
		return sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleUser, Content: text.String()}, nil
	}

	parts := make([]sdk.ChatMessagePart, 0, len(m.Content))
	for _, b := range m.Content {
		switch bl := b.(type) {
		case agentruntime.TextBlock:
			if bl.Text == "" {
				continue
			}
			parts = append(parts, sdk.ChatMessagePart{Type: sdk.ChatMessagePartTypeText, Text: bl.Text})
		case agentruntime.ImageBlock:
			parts = append(parts, sdk.ChatMessagePart{
				Type: sdk.ChatMessagePartTypeImageURL,
				ImageURL: &sdk.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", bl.MimeType, base64.StdEncoding.EncodeToString(bl.Data)),
				},
			})
		default:
			return sdk.ChatCompletionMessage{}, fmt.Errorf("openai: unsupported content block type %T in user message", b)
		}
	}
	return sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleUser, MultiContent: parts}, nil
}

// encodeAssistantMessage reconstructs a prior assistant turn. Thinking
// blocks are dropped: the Chat Completions API has no field for echoing
// reasoning content back on a later turn. ok is false (and the message
// should be skipped) when the turn carried nothing encodable, matching
// how an all-thinking turn collapses to nothing.
func encodeAssistantMessage(m agentruntime.AssistantMessage, canonToSan map[string]string) (sdk.ChatCompletionMessage, bool, error) {
	var text strings.Builder
	var toolCalls []sdk.ToolCall
	for _, b := range m.Content {
		switch bl := b.(type) {
		case agentruntime.TextBlock:
			text.WriteString(bl.Text)
		case agentruntime.ThinkingBlock:
			// Reasoning content is not echoed back to this API.
		case agentruntime.ToolCallBlock:
			name := bl.Name
			if sanitized, ok := canonToSan[bl.Name]; ok {
				name = sanitized
			}
			args := string(bl.Arguments)
			if args == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, sdk.ToolCall{
				ID:       bl.ID,
				Type:     sdk.ToolTypeFunction,
				Function: sdk.FunctionCall{Name: name, Arguments: args},
			})
		default:
			return sdk.ChatCompletionMessage{}, false, fmt.Errorf("openai: unsupported content block type %T in assistant message", b)
		}
	}

	if text.Len() == 0 && len(toolCalls) == 0 {
		return sdk.ChatCompletionMessage{}, false, nil
	}

	return sdk.ChatCompletionMessage{
		Role:      sdk.ChatMessageRoleAssistant,
		Content:   text.String(),
		ToolCalls: toolCalls,
	}, true, nil
}

func encodeToolResult(m agentruntime.ToolResultMessage) sdk.ChatCompletionMessage {
	var text strings.Builder
	for _, b := range m.Content {
		if tb, ok := b.(agentruntime.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := text.String()
	if content == "" {
		content = "{}"
	}
	return sdk.ChatCompletionMessage{
		Role:       sdk.ChatMessageRoleTool,
		Content:    content,
		ToolCallID: m.ToolCallID,
	}
}

// encodeTools builds the Chat Completions tool param list alongside the
// canonical <-> sanitized name maps used to round-trip tool names the model
// echoes back in tool call deltas.
func encodeTools(tools []agentruntime.Tool) ([]sdk.Tool, map[string]string, map[string]string, error) {
	if len(tools) == 0 {
		return nil, nil, nil, nil
	}

	result := make([]sdk.Tool, 0, len(tools))
	canonToSan := make(map[string]string, len(tools))
	sanToCanon := make(map[string]string, len(tools))

	for _, t := range tools {
		sanitized := sanitizeToolName(t.Name)
		if prev, ok := sanToCanon[sanitized]; ok && prev != t.Name {
			return nil, nil, nil, fmt.Errorf("openai: tool name %q sanitizes to %q, colliding with %q: %w", t.Name, sanitized, prev, agentruntime.ErrValidation)
		}
		canonToSan[t.Name] = sanitized
		sanToCanon[sanitized] = t.Name

		var params any
		if len(t.Parameters) > 0 {
			var m map[string]any
			if err := json.Unmarshal(t.Parameters, &m); err != nil {
				return nil, nil, nil, fmt.Errorf("openai: tool %q schema: %w", t.Name, err)
			}
			params = m
		}

		result = append(result, sdk.Tool{
			Type: sdk.ToolTypeFunction,
			Function: &sdk.FunctionDefinition{
				Name:        sanitized,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return result, canonToSan, sanToCanon, nil
}

// sanitizeToolName replaces characters OpenAI's function-naming constraints
// disallow with '_' and truncates to 64 characters.
func sanitizeToolName(name string) string {
	if isProviderSafeToolName(name) {
		return name
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}

func isProviderSafeToolName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
