// Package gemini implements [agentruntime.Provider] for the Google Gemini
// API.
//
// It wraps the google.golang.org/genai SDK, translating between this
// runtime's domain types and the Gemini API types. Streaming uses the SDK's
// iter.Seq2 iterator, pulled through [iter.Pull2] into the pull-based
// [agentruntime.Stream] interface.
package gemini

import "github.com/fwojciec/agentruntime"

const (
	// APITag is the registry key this adapter is registered under.
	APITag = "gemini-generatecontent"

	defaultModel     = "gemini-3.1-pro-preview"
	defaultMaxTokens = 65536

	// minThinkingBudget is the smallest non-zero thinking budget Gemini
	// accepts when a thinking level other than Off is requested.
	minThinkingBudget = 128
)

// defaultThinkingBudgets maps the provider-abstract thinking levels onto
// Gemini thinking-token budgets, scaled for a 65536-token response budget.
var defaultThinkingBudgets = map[agentruntime.ThinkingLevel]int32{
	agentruntime.ThinkingMinimal: 128,
	agentruntime.ThinkingLow:     1024,
	agentruntime.ThinkingMedium:  4096,
	agentruntime.ThinkingHigh:    16384,
	agentruntime.ThinkingXHigh:   32768,
}
