// Package openairesp implements [agentruntime.Provider] for OpenAI's
// Responses API and for Azure OpenAI's Responses deployment, reached via a
// hand-rolled net/http client and a manual SSE parser rather than an SDK:
// no example in this codebase's dependency set wraps the Responses wire
// shape, so the adapter talks the protocol directly, the way the Anthropic
// Messages adapter once did before an official SDK became available for
// it.
//
// The two api tags differ only in base URL, auth header, and the model ->
// deployment substitution Azure requires; everything downstream (request
// encoding, SSE parsing) is shared.
package openairesp

import (
	"encoding/json"
	"net/http"

	"github.com/fwojciec/agentruntime"
)

const (
	// APITag is the registry key for plain OpenAI's Responses API.
	APITag = "openai-responses"
	// AzureAPITag is the registry key for Azure OpenAI's Responses API.
	AzureAPITag = "azure-openai-responses"

	defaultBaseURL         = "https://api.openai.com/v1"
	responsesPath          = "/responses"
	defaultModel           = "gpt-5"
	defaultMaxOutputTokens = 8192
	defaultAzureAPIVersion = "2024-08-01-preview"
)

// Client implements [agentruntime.Provider] for the Responses API, plain or
// Azure-hosted.
type Client struct {
	apiKey     string
	apiTag     string
	provider   string
	baseURL    string
	httpClient *http.Client

	defaultModel           string
	defaultMaxOutputTokens int
	reasoningEfforts       map[agentruntime.ThinkingLevel]string

	// azureAPIVersion is non-empty for Azure-hosted clients; its presence
	// also selects the api-key auth header and deployment-scoped URL path.
	azureAPIVersion string
}

// Interface compliance check.
var _ agentruntime.Provider = (*Client)(nil)

// apiRequest is the JSON body sent to the Responses API.
type apiRequest struct {
	Model           string          `json:"model"`
	Input           []apiInputItem  `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	Tools           []apiTool       `json:"tools,omitempty"`
	ToolChoice      string          `json:"tool_choice,omitempty"`
	Stream          bool            `json:"stream"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	Reasoning       *apiReasoning   `json:"reasoning,omitempty"`
}

// apiReasoning carries reasoning-model-specific options; Effort is one of
// "low", "medium", "high".
type apiReasoning struct {
	Effort string `json:"effort,omitempty"`
}

// apiInputItem is one entry of the Input array: a role-tagged message, a
// function call emitted on a prior turn, or the result of executing one.
// Which fields apply depends on Type.
type apiInputItem struct {
	Type string `json:"type,omitempty"` // "message" (default), "function_call", "function_call_output"
	Role string `json:"role,omitempty"` // message only: "system" | "user" | "assistant"

	// message
	Content []apiContentPart `json:"content,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output
	Output string `json:"output,omitempty"`
}

// apiContentPart is one part of a message's Content array.
type apiContentPart struct {
	Type     string `json:"type"` // "input_text" | "output_text" | "input_image"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type apiTool struct {
	Type        string          `json:"type"` // always "function"
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// apiErrorResponse is the JSON body of a non-2xx HTTP response.
type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL overrides the API base URL (used for Azure endpoints and for
// pointing tests at a local server).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDefaultModel overrides the model ID used when a Request leaves Model
// empty. For Azure this is the deployment name.
func WithDefaultModel(model string) Option {
	return func(c *Client) { c.defaultModel = model }
}

// WithDefaultMaxOutputTokens overrides max_output_tokens used when a
// Request leaves MaxTokens at zero.
func WithDefaultMaxOutputTokens(n int) Option {
	return func(c *Client) { c.defaultMaxOutputTokens = n }
}

// WithReasoningEfforts overrides the thinking-level-to-effort table. Levels
// absent from the map fall back to the package defaults.
func WithReasoningEfforts(efforts map[agentruntime.ThinkingLevel]string) Option {
	return func(c *Client) {
		for level, effort := range efforts {
			c.reasoningEfforts[level] = effort
		}
	}
}

// New builds a Client against the plain OpenAI Responses API.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:                 apiKey,
		apiTag:                 APITag,
		provider:               "openai",
		baseURL:                defaultBaseURL,
		httpClient:             http.DefaultClient,
		defaultModel:           defaultModel,
		defaultMaxOutputTokens: defaultMaxOutputTokens,
		reasoningEfforts:       defaultReasoningEfforts(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewAzure builds a Client against an Azure OpenAI resource. endpoint is
// the resource's base URL (e.g. "https://my-resource.openai.azure.com");
// deployment is the Azure deployment name, used as the default model (and
// as the model ID itself, since Azure addresses models by deployment, not
// by the upstream model name).
func NewAzure(endpoint, apiKey, deployment string, opts ...Option) *Client {
	c := &Client{
		apiKey:                 apiKey,
		apiTag:                 AzureAPITag,
		provider:               "azure",
		baseURL:                endpoint,
		httpClient:             http.DefaultClient,
		defaultModel:           deployment,
		defaultMaxOutputTokens: defaultMaxOutputTokens,
		reasoningEfforts:       defaultReasoningEfforts(),
		azureAPIVersion:        defaultAzureAPIVersion,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// defaultReasoningEfforts maps the provider-abstract thinking levels onto
// the Responses API's effort vocabulary. Off disables the field entirely.
func defaultReasoningEfforts() map[agentruntime.ThinkingLevel]string {
	return map[agentruntime.ThinkingLevel]string{
		agentruntime.ThinkingMinimal: "low",
		agentruntime.ThinkingLow:     "low",
		agentruntime.ThinkingMedium:  "medium",
		agentruntime.ThinkingHigh:    "high",
		agentruntime.ThinkingXHigh:   "high",
	}
}
