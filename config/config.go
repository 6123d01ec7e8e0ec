// Package config provides the functional-option configuration shared by the
// agent loop and the facade that drives it, following the teacher's
// anthropic.Option/gemini.Option pattern generalized from a per-provider
// client to the loop as a whole.
package config

import (
	"os"
	"time"

	"github.com/fwojciec/agentruntime/log"
)

// DrainMode controls how many messages a steering or follow-up queue
// yields per drain call.
type DrainMode int

const (
	// DrainAll removes and returns every queued message at once.
	DrainAll DrainMode = iota
	// DrainOne removes and returns a single queued message per call.
	DrainOne
)

// Config holds the tunables for an agent loop activation.
type Config struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	LLMTimeout    time.Duration
	ToolTimeout   time.Duration
	SteeringMode  DrainMode
	FollowUpMode  DrainMode
	GetAPIKey     func(provider string) (string, bool)
	Logger        log.Logger
}

// Option mutates a Config.
type Option func(*Config)

// New builds a Config starting from sensible defaults and applying opts in
// order.
func New(opts ...Option) *Config {
	cfg := &Config{
		MaxRetries:    3,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 30 * time.Second,
		SteeringMode:  DrainAll,
		FollowUpMode:  DrainAll,
		GetAPIKey:     EnvAPIKey,
		Logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithMaxRetries sets the maximum number of retries for a retriable
// streaming failure (rate limit or LLM timeout), not counting the initial
// attempt.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithRetryDelay sets the base delay for exponential backoff.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) { c.RetryDelay = d }
}

// WithMaxRetryDelay caps the backoff delay regardless of attempt count.
func WithMaxRetryDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxRetryDelay = d }
}

// WithLLMTimeout bounds a single streaming call; exceeding it counts as a
// retriable error.
func WithLLMTimeout(d time.Duration) Option {
	return func(c *Config) { c.LLMTimeout = d }
}

// WithToolTimeout bounds a single tool execution.
func WithToolTimeout(d time.Duration) Option {
	return func(c *Config) { c.ToolTimeout = d }
}

// WithSteeringMode sets how many messages a steering-queue drain yields.
func WithSteeringMode(m DrainMode) Option {
	return func(c *Config) { c.SteeringMode = m }
}

// WithFollowUpMode sets how many messages a follow-up-queue drain yields.
func WithFollowUpMode(m DrainMode) Option {
	return func(c *Config) { c.FollowUpMode = m }
}

// WithGetAPIKey overrides the env-var lookup used to resolve a provider's
// API key.
func WithGetAPIKey(fn func(provider string) (string, bool)) Option {
	return func(c *Config) { c.GetAPIKey = fn }
}

// WithLogger overrides the default logger.
func WithLogger(l log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// envVar maps a provider name to the environment variable holding its API
// key, matching the auth table of supported providers.
var envVar = map[string]string{
	"openai":           "OPENAI_API_KEY",
	"anthropic":        "ANTHROPIC_API_KEY",
	"gemini":           "GEMINI_API_KEY",
	"mistral":          "MISTRAL_API_KEY",
	"xai":              "XAI_API_KEY",
	"openrouter":       "OPENROUTER_API_KEY",
	"zhipu":            "ZHIPU_API_KEY",
	"openai-responses": "OPENAI_API_KEY",
	"azure":            "AZURE_OPENAI_API_KEY",
}

// EnvAPIKey is the default GetAPIKey implementation: it looks up the
// provider's conventional environment variable.
func EnvAPIKey(provider string) (string, bool) {
	name, ok := envVar[provider]
	if !ok {
		return "", false
	}
	return os.LookupEnv(name)
}
