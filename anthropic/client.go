package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/fwojciec/agentruntime"
)

// Stream sends a streaming request to the Anthropic Messages API and
// returns an [agentruntime.Stream] that emits semantic events as the
// response is assembled.
func (c *Client) Stream(ctx context.Context, req agentruntime.Request) (agentruntime.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	params, nameMap, err := c.prepareRequest(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	sdkStream := c.msg.NewStreaming(ctx, *params)
	if err := sdkStream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	return newStream(ctx, sdkStream, nameMap, string(params.Model), req.Cost), nil
}

func (c *Client) prepareRequest(req agentruntime.Request) (*sdk.MessageNewParams, map[string]string, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}

	toolParams, canonToSan, sanToCanon, err := encodeTools(req.Tools)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := encodeMessages(req.Messages, canonToSan)
	if err != nil {
		return nil, nil, err
	}

	params := &sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(modelID),
	}
	if system := encodeSystem(req.SystemPrompt); len(system) > 0 {
		params.System = system
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	if req.ThinkingLevel != "" && req.ThinkingLevel != agentruntime.ThinkingOff {
		budget, ok := c.thinkingBudgets[req.ThinkingLevel]
		if !ok {
			return nil, nil, fmt.Errorf("anthropic: unsupported thinking level %q: %w", req.ThinkingLevel, agentruntime.ErrValidation)
		}
		if budget < minThinkingBudget {
			return nil, nil, fmt.Errorf("anthropic: thinking budget %d below minimum %d: %w", budget, minThinkingBudget, agentruntime.ErrValidation)
		}
		if budget >= int64(maxTokens) {
			return nil, nil, fmt.Errorf("anthropic: thinking budget %d must be less than max_tokens %d: %w", budget, maxTokens, agentruntime.ErrValidation)
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
	}

	return params, sanToCanon, nil
}

func encodeSystem(prompt string) []sdk.TextBlockParam {
	if prompt == "" {
		return nil
	}
	return []sdk.TextBlockParam{{Text: prompt}}
}

// encodeMessages translates the conversation history into Anthropic message
// params. Consecutive tool results are merged into a single user message,
// matching the Messages API's expectation that tool_result blocks accompany
// the user turn that follows a tool_use round.
func encodeMessages(msgs []agentruntime.Message, canonToSan map[string]string) ([]sdk.MessageParam, error) {
	result := make([]sdk.MessageParam, 0, len(msgs))
	mergingToolResults := false

	for _, msg := range msgs {
		switch m := msg.(type) {
		case agentruntime.UserMessage:
			blocks, err := encodeContentBlocks(m.Content, canonToSan)
			if err != nil {
				return nil, err
			}
			result = append(result, sdk.NewUserMessage(blocks...))
			mergingToolResults = false

		case agentruntime.AssistantMessage:
			blocks, err := encodeContentBlocks(m.Content, canonToSan)
			if err != nil {
				return nil, err
			}
			if len(blocks) == 0 {
				continue
			}
			result = append(result, sdk.NewAssistantMessage(blocks...))
			mergingToolResults = false

		case agentruntime.ToolResultMessage:
			block, err := encodeToolResult(m)
			if err != nil {
				return nil, err
			}
			if mergingToolResults && len(result) > 0 {
				result[len(result)-1].Content = append(result[len(result)-1].Content, block)
			} else {
				result = append(result, sdk.NewUserMessage(block))
				mergingToolResults = true
			}

		default:
			return nil, fmt.Errorf("anthropic: unsupported message type %T", msg)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("anthropic: at least one message is required: %w", agentruntime.ErrValidation)
	}
	return result, nil
}

func encodeContentBlocks(blocks []agentruntime.ContentBlock, canonToSan map[string]string) ([]sdk.ContentBlockParamUnion, error) {
	result := make([]sdk.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch bl := b.(type) {
		case agentruntime.TextBlock:
			if bl.Text == "" {
				continue
			}
			result = append(result, sdk.NewTextBlock(bl.Text))

		case agentruntime.ThinkingBlock:
			if bl.Thinking == "" {
				continue
			}
			result = append(result, sdk.NewThinkingBlock(string(bl.Signature), bl.Thinking))

		case agentruntime.ToolCallBlock:
			name := bl.Name
			if sanitized, ok := canonToSan[bl.Name]; ok {
				name = sanitized
			}
			var input any = json.RawMessage(bl.Arguments)
			result = append(result, sdk.NewToolUseBlock(bl.ID, input, name))

		case agentruntime.ImageBlock:
			result = append(result, sdk.NewImageBlockBase64(bl.MimeType, base64.StdEncoding.EncodeToString(bl.Data)))

		default:
			return nil, fmt.Errorf("anthropic: unsupported content block type %T", b)
		}
	}
	return result, nil
}

func encodeToolResult(m agentruntime.ToolResultMessage) (sdk.ContentBlockParamUnion, error) {
	content, err := encodeContentBlocks(m.Content, nil)
	if err != nil {
		return sdk.ContentBlockParamUnion{}, err
	}
	// Tool results accept a single string body in the common case; fold
	// text blocks into one, since that covers every built-in tool.
	var text strings.Builder
	for _, c := range m.Content {
		if tb, ok := c.(agentruntime.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if len(content) > 0 {
		return sdk.NewToolResultBlock(m.ToolCallID, text.String(), m.IsError), nil
	}
	return sdk.NewToolResultBlock(m.ToolCallID, "", m.IsError), nil
}

// encodeTools builds the Anthropic tool param list alongside the canonical
// <-> sanitized name maps used to round-trip tool names the model echoes
// back in tool_use blocks.
func encodeTools(tools []agentruntime.Tool) ([]sdk.ToolUnionParam, map[string]string, map[string]string, error) {
	if len(tools) == 0 {
		return nil, nil, nil, nil
	}

	result := make([]sdk.ToolUnionParam, 0, len(tools))
	canonToSan := make(map[string]string, len(tools))
	sanToCanon := make(map[string]string, len(tools))

	for _, t := range tools {
		sanitized := sanitizeToolName(t.Name)
		if prev, ok := sanToCanon[sanitized]; ok && prev != t.Name {
			return nil, nil, nil, fmt.Errorf("anthropic: tool name %q sanitizes to %q, colliding with %q: %w", t.Name, sanitized, prev, agentruntime.ErrValidation)
		}
		canonToSan[t.Name] = sanitized
		sanToCanon[sanitized] = t.Name

		schema, err := toolInputSchema(t.Parameters)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("anthropic: tool %q schema: %w", t.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, sanitized)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		result = append(result, u)
	}
	return result, canonToSan, sanToCanon, nil
}

func toolInputSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

// sanitizeToolName replaces characters Anthropic's tool-naming constraints
// disallow with '_' and truncates the result to 64 characters. Tool names
// in this runtime are already flat identifiers (no toolset-prefixed dotted
// paths), so no other rewriting is applied.
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
