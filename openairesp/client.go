package openairesp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/agentruntime"
)

// Stream sends a streaming request to the Responses API and returns an
// [agentruntime.Stream] that emits semantic events as the response is
// assembled.
func (c *Client) Stream(ctx context.Context, req agentruntime.Request) (agentruntime.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.apiTag, err)
	}

	model, body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.apiTag, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.apiTag, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.apiTag, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.parseHTTPError(resp)
	}

	return newStream(ctx, resp.Body, model, c.apiTag, c.provider, req.Cost), nil
}

// url builds the request URL. Azure addresses a model through its
// deployment-scoped path and an api-version query parameter rather than
// OpenAI's flat /responses endpoint.
func (c *Client) url(model string) string {
	if c.azureAPIVersion != "" {
		return fmt.Sprintf("%s/openai/deployments/%s%s?api-version=%s", c.baseURL, model, responsesPath, c.azureAPIVersion)
	}
	return c.baseURL + responsesPath
}

// setAuth sets the provider-appropriate auth header: OpenAI takes a bearer
// token, Azure an api-key header.
func (c *Client) setAuth(httpReq *http.Request) {
	if c.azureAPIVersion != "" {
		httpReq.Header.Set("api-key", c.apiKey)
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *Client) buildRequestBody(req agentruntime.Request) (string, []byte, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxOutputTokens := req.MaxTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = c.defaultMaxOutputTokens
	}

	input, err := encodeInput(req.Messages)
	if err != nil {
		return "", nil, err
	}

	apiReq := apiRequest{
		Model:           model,
		Input:           input,
		Instructions:    req.SystemPrompt,
		Tools:           encodeTools(req.Tools),
		Stream:          true,
		MaxOutputTokens: maxOutputTokens,
		Temperature:     req.Temperature,
	}
	if len(apiReq.Tools) > 0 {
		apiReq.ToolChoice = "auto"
	}

	if req.ThinkingLevel != "" && req.ThinkingLevel != agentruntime.ThinkingOff {
		effort, ok := c.reasoningEfforts[req.ThinkingLevel]
		if !ok {
			return "", nil, fmt.Errorf("unsupported thinking level %q: %w", req.ThinkingLevel, agentruntime.ErrValidation)
		}
		apiReq.Reasoning = &apiReasoning{Effort: effort}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return "", nil, err
	}
	return model, body, nil
}

// encodeInput translates the conversation history into Responses API input
// items. Unlike the Chat Completions wire shape, tool calls and their
// results are carried as standalone typed items rather than embedded in an
// assistant message's content array.
func encodeInput(msgs []agentruntime.Message) ([]apiInputItem, error) {
	var items []apiInputItem
	for _, msg := range msgs {
		switch m := msg.(type) {
		case agentruntime.UserMessage:
			parts, err := encodeContentParts(m.Content, "input_text", "input_image")
			if err != nil {
				return nil, err
			}
			items = append(items, apiInputItem{Type: "message", Role: "user", Content: parts})

		case agentruntime.AssistantMessage:
			var textParts []apiContentPart
			for _, b := range m.Content {
				switch bl := b.(type) {
				case agentruntime.TextBlock:
					textParts = append(textParts, apiContentPart{Type: "output_text", Text: bl.Text})
				case agentruntime.ThinkingBlock:
					// Reasoning summaries are not echoed back on later turns.
				case agentruntime.ToolCallBlock:
					args := string(bl.Arguments)
					if args == "" {
						args = "{}"
					}
					items = append(items, apiInputItem{
						Type:      "function_call",
						CallID:    bl.ID,
						Name:      bl.Name,
						Arguments: args,
					})
				default:
					return nil, fmt.Errorf("unsupported content block type %T in assistant message", b)
				}
			}
			if len(textParts) > 0 {
				items = append(items, apiInputItem{Type: "message", Role: "assistant", Content: textParts})
			}

		case agentruntime.ToolResultMessage:
			items = append(items, apiInputItem{
				Type:   "function_call_output",
				CallID: m.ToolCallID,
				Output: flattenToolResultText(m.Content),
			})

		default:
			return nil, fmt.Errorf("unsupported message type %T", msg)
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("at least one message is required: %w", agentruntime.ErrValidation)
	}
	return items, nil
}

func encodeContentParts(blocks []agentruntime.ContentBlock, textType, imageType string) ([]apiContentPart, error) {
	result := make([]apiContentPart, 0, len(blocks))
	for _, b := range blocks {
		switch bl := b.(type) {
		case agentruntime.TextBlock:
			result = append(result, apiContentPart{Type: textType, Text: bl.Text})
		case agentruntime.ImageBlock:
			result = append(result, apiContentPart{
				Type:     imageType,
				ImageURL: fmt.Sprintf("data:%s;base64,%s", bl.MimeType, base64.StdEncoding.EncodeToString(bl.Data)),
			})
		default:
			return nil, fmt.Errorf("unsupported content block type %T in user message", b)
		}
	}
	return result, nil
}

func flattenToolResultText(blocks []agentruntime.ContentBlock) string {
	var text strings.Builder
	for _, b := range blocks {
		if tb, ok := b.(agentruntime.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	return text.String()
}

func encodeTools(tools []agentruntime.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]apiTool, len(tools))
	for i, t := range tools {
		result[i] = apiTool{Type: "function", Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	return result
}

func (c *Client) parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: HTTP %d (failed to read body: %w)", c.apiTag, resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("%s: HTTP %d: %s", c.apiTag, resp.StatusCode, string(body))
	}
	return fmt.Errorf("%s: %s: %s", c.apiTag, apiErr.Error.Type, apiErr.Error.Message)
}
