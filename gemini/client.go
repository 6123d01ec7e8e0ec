package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/fwojciec/agentruntime"
)

// Interface compliance check.
var _ agentruntime.Provider = (*Client)(nil)

// Client implements [agentruntime.Provider] for the Google Gemini API.
type Client struct {
	client           *genai.Client
	defaultModel     string
	defaultMaxTokens int
	thinkingBudgets  map[agentruntime.ThinkingLevel]int32
}

// Option configures a [Client].
type Option func(*Client)

// WithDefaultModel overrides the model ID used when a Request leaves Model
// empty. Default is gemini-3.1-pro-preview.
func WithDefaultModel(model string) Option {
	return func(c *Client) { c.defaultModel = model }
}

// WithDefaultMaxTokens overrides the max_output_tokens used when a Request
// leaves MaxTokens at zero.
func WithDefaultMaxTokens(n int) Option {
	return func(c *Client) { c.defaultMaxTokens = n }
}

// WithThinkingBudgets overrides the thinking-level-to-budget-tokens table.
// Levels absent from the map fall back to the package defaults.
func WithThinkingBudgets(budgets map[agentruntime.ThinkingLevel]int32) Option {
	return func(c *Client) {
		for level, tokens := range budgets {
			c.thinkingBudgets[level] = tokens
		}
	}
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client:           gc,
		defaultModel:     defaultModel,
		defaultMaxTokens: defaultMaxTokens,
		thinkingBudgets:  make(map[agentruntime.ThinkingLevel]int32, len(defaultThinkingBudgets)),
	}
	for level, tokens := range defaultThinkingBudgets {
		c.thinkingBudgets[level] = tokens
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream sends a streaming request to the Gemini API and returns an
// [agentruntime.Stream] that emits semantic events.
func (c *Client) Stream(ctx context.Context, req agentruntime.Request) (agentruntime.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	contents, err := ConvertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	config, err := c.buildConfig(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	iter := c.client.Models.GenerateContentStream(ctx, model, contents, config)
	return newStream(ctx, iter, model, req.Cost), nil
}

func (c *Client) buildConfig(req agentruntime.Request) (*genai.GenerateContentConfig, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.defaultMaxTokens
	}
	if maxTokens > math.MaxInt32 {
		maxTokens = math.MaxInt32
	}

	tools, err := ConvertTools(req.Tools)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens), //nolint:gosec // clamped above
		Tools:           tools,
	}

	if req.ThinkingLevel != "" && req.ThinkingLevel != agentruntime.ThinkingOff {
		budget, ok := c.thinkingBudgets[req.ThinkingLevel]
		if !ok {
			return nil, fmt.Errorf("unsupported thinking level %q: %w", req.ThinkingLevel, agentruntime.ErrValidation)
		}
		if budget < minThinkingBudget {
			return nil, fmt.Errorf("thinking budget %d below minimum %d: %w", budget, minThinkingBudget, agentruntime.ErrValidation)
		}
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  &budget,
		}
	}

	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	return config, nil
}

// ConvertMessages converts agentruntime Messages to genai Contents.
// Exported for testing.
func ConvertMessages(msgs []agentruntime.Message) ([]*genai.Content, error) {
	var result []*genai.Content
	for _, msg := range msgs {
		switch m := msg.(type) {
		case agentruntime.UserMessage:
			parts, err := convertParts(m.Content)
			if err != nil {
				return nil, fmt.Errorf("user message: %w", err)
			}
			result = append(result, &genai.Content{
				Role:  "user",
				Parts: parts,
			})
		case agentruntime.AssistantMessage:
			parts, err := convertParts(m.Content)
			if err != nil {
				return nil, fmt.Errorf("assistant message: %w", err)
			}
			result = append(result, &genai.Content{
				Role:  "model",
				Parts: parts,
			})
		case agentruntime.ToolResultMessage:
			text := extractText(m.Content)
			var responseMap map[string]any
			if m.IsError {
				responseMap = map[string]any{"error": text}
			} else {
				responseMap = map[string]any{"output": text}
			}
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     m.ToolName,
						Response: responseMap,
					},
				}},
			})
		default:
			return nil, fmt.Errorf("unsupported message type: %T", msg)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("at least one message is required: %w", agentruntime.ErrValidation)
	}
	return result, nil
}

func convertParts(blocks []agentruntime.ContentBlock) ([]*genai.Part, error) {
	var parts []*genai.Part
	// Gemini requires ThoughtSignature on FunctionCall parts that follow
	// thinking. Track the last signature so tool calls can include it.
	// lastSig intentionally persists across non-thinking blocks (Text, Image)
	// because Gemini's thinking always logically precedes the tool calls it
	// produces, regardless of any intervening content parts.
	var lastSig []byte
	for _, b := range blocks {
		switch bl := b.(type) {
		case agentruntime.TextBlock:
			parts = append(parts, &genai.Part{Text: bl.Text})
		case agentruntime.ThinkingBlock:
			p := &genai.Part{Text: bl.Thinking, Thought: true}
			if bl.Signature != nil {
				p.ThoughtSignature = bl.Signature
				lastSig = bl.Signature
			} else {
				lastSig = nil
			}
			parts = append(parts, p)
		case agentruntime.ToolCallBlock:
			var args map[string]any
			if err := json.Unmarshal(bl.Arguments, &args); err != nil {
				return nil, fmt.Errorf("invalid tool call arguments JSON: %w", err)
			}
			p := &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   bl.ID,
					Name: bl.Name,
					Args: args,
				},
			}
			if lastSig != nil {
				p.ThoughtSignature = lastSig
			}
			parts = append(parts, p)
		case agentruntime.ImageBlock:
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: bl.MimeType,
					Data:     bl.Data,
				},
			})
		default:
			return nil, fmt.Errorf("unsupported content block type: %T", b)
		}
	}
	return parts, nil
}

// extractText returns the concatenated text of all TextBlocks, separated by
// newlines. Returns empty string if no TextBlocks are present.
func extractText(blocks []agentruntime.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if tb, ok := b.(agentruntime.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ConvertTools converts agentruntime Tools to genai Tools.
// Exported for testing.
func ConvertTools(tools []agentruntime.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool parameters JSON for %q: %w", t.Name, err)
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}
