// Package anthropic implements [agentruntime.Provider] for the Anthropic
// Messages API using the official github.com/anthropics/anthropic-sdk-go
// client. It assembles one AssistantMessage per call, forwarding semantic
// events through the pull-based [agentruntime.Stream] interface while the
// SDK's own ssestream reads the wire.
package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/fwojciec/agentruntime"
)

const (
	// APITag is the registry key this adapter is registered under.
	APITag = "anthropic-messages"

	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192

	// minThinkingBudget is the smallest budget Anthropic accepts when
	// thinking is enabled.
	minThinkingBudget = 1024
)

// defaultThinkingBudgets maps the provider-abstract thinking levels onto
// Anthropic thinking-token budgets. Off disables thinking entirely; the
// rest scale roughly geometrically up from the API minimum. Only Minimal,
// Low and Medium fit below defaultMaxTokens: the High (8192) and XHigh
// (16000) budgets are not below it, so those levels are rejected unless
// max_tokens is raised (per request, or via WithDefaultMaxTokens).
var defaultThinkingBudgets = map[agentruntime.ThinkingLevel]int64{
	agentruntime.ThinkingMinimal: 1024,
	agentruntime.ThinkingLow:     2048,
	agentruntime.ThinkingMedium:  4096,
	agentruntime.ThinkingHigh:    8192,
	agentruntime.ThinkingXHigh:   16000,
}

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter. It is satisfied by *sdk.MessageService, so tests can substitute
// a fake without depending on the real HTTP transport.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Client implements [agentruntime.Provider] for the Anthropic Messages API.
type Client struct {
	msg              MessagesClient
	defaultModel     string
	defaultMaxTokens int
	thinkingBudgets  map[agentruntime.ThinkingLevel]int64
}

// Option configures a [Client].
type Option func(*Client)

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

// WithThinkingBudgets overrides the thinking-level-to-budget-tokens table.
// Levels absent from the map fall back to the package defaults; Off is
// never looked up here since it disables thinking outright.
func WithThinkingBudgets(budgets map[agentruntime.ThinkingLevel]int64) Option {
	return func(c *Client) {
		for level, tokens := range budgets {
			c.thinkingBudgets[level] = tokens
		}
	}
}

// New builds a Client around an already-configured MessagesClient (typically
// &sdk.NewClient(...).Messages). Use this form in tests, passing a fake
// MessagesClient.
func New(msg MessagesClient, opts ...Option) *Client {
	c := &Client{
		msg:              msg,
		defaultModel:     defaultModel,
		defaultMaxTokens: defaultMaxTokens,
		thinkingBudgets:  make(map[agentruntime.ThinkingLevel]int64, len(defaultThinkingBudgets)),
	}
	for level, tokens := range defaultThinkingBudgets {
		c.thinkingBudgets[level] = tokens
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromAPIKey constructs a Client against the real Anthropic API using
// the given API key.
func NewFromAPIKey(apiKey string, opts ...Option) *Client {
	sdkClient := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&sdkClient.Messages, opts...)
}

// Interface compliance check.
var _ agentruntime.Provider = (*Client)(nil)
