// Package openai implements [agentruntime.Provider] for the OpenAI Chat
// Completions API and the family of OpenAI-compatible providers that speak
// the same wire format (Mistral, xAI, OpenRouter, Zhipu), all via the
// github.com/sashabaranov/go-openai client. One Client type serves every
// member of the family; only the base URL, default model, and a couple of
// quirk flags (tool-call id normalization, reasoning effort support) differ
// between them.
package openai

import (
	"context"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/fwojciec/agentruntime"
)

const (
	// APITag is the registry key for plain OpenAI Chat Completions.
	APITag = "openai-completions"
	// MistralAPITag is the registry key for Mistral's OpenAI-compatible API.
	MistralAPITag = "mistral-chat"
	// XAIAPITag is the registry key for xAI's OpenAI-compatible API.
	XAIAPITag = "xai-chat"
	// OpenRouterAPITag is the registry key for OpenRouter's OpenAI-compatible API.
	OpenRouterAPITag = "openrouter-chat"
	// ZhipuAPITag is the registry key for Zhipu's (GLM) OpenAI-compatible API.
	ZhipuAPITag = "zhipu-chat"

	defaultModel     = "gpt-4o"
	defaultMaxTokens = 8192

	mistralBaseURL    = "https://api.mistral.ai/v1"
	xaiBaseURL        = "https://api.x.ai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	zhipuBaseURL      = "https://open.bigmodel.cn/api/paas/v4"
)

// defaultReasoningEfforts maps the provider-abstract thinking levels onto
// OpenAI's reasoning_effort vocabulary. Off disables the parameter
// entirely (the request omits it); Minimal and Low both map to "low" since
// OpenAI's reasoning models only expose three effort tiers.
var defaultReasoningEfforts = map[agentruntime.ThinkingLevel]string{
	agentruntime.ThinkingMinimal: "low",
	agentruntime.ThinkingLow:     "low",
	agentruntime.ThinkingMedium:  "medium",
	agentruntime.ThinkingHigh:    "high",
	agentruntime.ThinkingXHigh:   "high",
}

// ChatCompletionStream captures the subset of *sdk.ChatCompletionStream
// used by the adapter, so tests can substitute a fake without a real HTTP
// transport.
type ChatCompletionStream interface {
	Recv() (sdk.ChatCompletionStreamResponse, error)
	Close() error
}

// ChatClient captures the subset of the go-openai SDK client used by the
// adapter.
type ChatClient interface {
	CreateChatCompletionStream(ctx context.Context, request sdk.ChatCompletionRequest) (ChatCompletionStream, error)
}

// sdkChatClient adapts *sdk.Client to ChatClient. The real SDK method
// returns the concrete *sdk.ChatCompletionStream type, which satisfies the
// narrower ChatCompletionStream interface; this wrapper performs that
// widening at the call site.
type sdkChatClient struct {
	client *sdk.Client
}

func (w sdkChatClient) CreateChatCompletionStream(ctx context.Context, req sdk.ChatCompletionRequest) (ChatCompletionStream, error) {
	return w.client.CreateChatCompletionStream(ctx, req)
}

// Client implements [agentruntime.Provider] for OpenAI Chat Completions and
// its API-compatible siblings.
type Client struct {
	chat             ChatClient
	apiTag           string
	defaultModel     string
	defaultMaxTokens int
	reasoningEfforts map[agentruntime.ThinkingLevel]string
	normalizeToolIDs bool
}

// Option configures a [Client].
type Option func(*Client)

// WithAPITag overrides the registry tag this client reports as its source
// API, for registering the same adapter type under a sibling provider's tag
// (mistral-chat, xai-chat, openrouter-chat, zhipu-chat).
func WithAPITag(tag string) Option {
	return func(c *Client) { c.apiTag = tag }
}

// WithDefaultModel overrides the model ID used when a Request leaves Model
// empty.
func WithDefaultModel(model string) Option {
	return func(c *Client) { c.defaultModel = model }
}

// WithDefaultMaxTokens overrides the max_tokens used when a Request leaves
// MaxTokens at zero.
func WithDefaultMaxTokens(n int) Option {
	return func(c *Client) { c.defaultMaxTokens = n }
}

// WithReasoningEfforts overrides the thinking-level-to-reasoning_effort
// table. Levels absent from the map fall back to the package defaults.
func WithReasoningEfforts(efforts map[agentruntime.ThinkingLevel]string) Option {
	return func(c *Client) {
		for level, effort := range efforts {
			c.reasoningEfforts[level] = effort
		}
	}
}

// WithToolIDNormalization enables 9-character alphanumeric tool-call id
// normalization, required by providers (Mistral, Zhipu) that reject the
// longer ids OpenAI itself generates.
func WithToolIDNormalization() Option {
	return func(c *Client) { c.normalizeToolIDs = true }
}

// New builds a Client around an already-configured ChatClient. Use this
// form in tests, passing a fake ChatClient.
func New(chat ChatClient, opts ...Option) *Client {
	c := &Client{
		chat:             chat,
		apiTag:           APITag,
		defaultModel:     defaultModel,
		defaultMaxTokens: defaultMaxTokens,
		reasoningEfforts: make(map[agentruntime.ThinkingLevel]string, len(defaultReasoningEfforts)),
	}
	for level, effort := range defaultReasoningEfforts {
		c.reasoningEfforts[level] = effort
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromAPIKey constructs a Client against the real OpenAI API using the
// given API key.
func NewFromAPIKey(apiKey string, opts ...Option) *Client {
	return New(sdkChatClient{client: sdk.NewClient(apiKey)}, opts...)
}

// NewFromConfig constructs a Client against an OpenAI-compatible API at
// baseURL (Mistral, xAI, OpenRouter, Zhipu, or a private gateway).
func NewFromConfig(apiKey, baseURL string, opts ...Option) *Client {
	config := sdk.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return New(sdkChatClient{client: sdk.NewClientWithConfig(config)}, opts...)
}

// NewMistralFromAPIKey constructs a Client against Mistral's chat completions
// endpoint, with tool-call id normalization enabled.
func NewMistralFromAPIKey(apiKey string, opts ...Option) *Client {
	all := append([]Option{WithAPITag(MistralAPITag), WithToolIDNormalization()}, opts...)
	return NewFromConfig(apiKey, mistralBaseURL, all...)
}

// NewXAIFromAPIKey constructs a Client against xAI's chat completions
// endpoint.
func NewXAIFromAPIKey(apiKey string, opts ...Option) *Client {
	all := append([]Option{WithAPITag(XAIAPITag)}, opts...)
	return NewFromConfig(apiKey, xaiBaseURL, all...)
}

// NewOpenRouterFromAPIKey constructs a Client against OpenRouter's chat
// completions endpoint.
func NewOpenRouterFromAPIKey(apiKey string, opts ...Option) *Client {
	all := append([]Option{WithAPITag(OpenRouterAPITag)}, opts...)
	return NewFromConfig(apiKey, openRouterBaseURL, all...)
}

// NewZhipuFromAPIKey constructs a Client against Zhipu's (GLM) chat
// completions endpoint, with tool-call id normalization enabled.
func NewZhipuFromAPIKey(apiKey string, opts ...Option) *Client {
	all := append([]Option{WithAPITag(ZhipuAPITag), WithToolIDNormalization()}, opts...)
	return NewFromConfig(apiKey, zhipuBaseURL, all...)
}

// Interface compliance check.
var _ agentruntime.Provider = (*Client)(nil)
