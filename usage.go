package agentruntime

// Usage tracks token consumption for a single assistant message.
//
// Invariant across all providers:
//
//	InputTokens      = non-cached input tokens
//	CacheReadTokens  = tokens served from cache (cache hit)
//	CacheWriteTokens = tokens written to cache (cache creation)
//
// Total input tokens = InputTokens + CacheReadTokens + CacheWriteTokens.
// Each category has a different cost rate. Providers normalize their
// API-specific fields to this invariant (e.g., OpenAI subtracts
// cached_tokens from input_tokens to produce InputTokens).
// Providers must clamp to zero: max(0, derived) when subtracting to
// guard against inconsistent upstream data.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	// TotalTokens is the sum of the four categories above, set once the
	// message's final usage is known.
	TotalTokens int
	// Cost is the monetary breakdown of this Usage against the Model's
	// price table, set by the adapter via CalculateCost once the message
	// completes. Zero when the Model carries no price table.
	Cost UsageCost
}

// Add returns the element-wise sum of two Usage values. Used to verify the
// cost-linearity property: CalculateCost(a+b) == CalculateCost(a) + CalculateCost(b).
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		Cost:             u.Cost.Add(other.Cost),
	}
}

// UsageCost is a monetary breakdown of a Usage against a ModelCost table,
// one component per token category, plus their sum.
type UsageCost struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
	Total      float64
}

// Add returns the element-wise sum of two UsageCost values.
func (c UsageCost) Add(other UsageCost) UsageCost {
	return UsageCost{
		Input:      c.Input + other.Input,
		Output:     c.Output + other.Output,
		CacheRead:  c.CacheRead + other.CacheRead,
		CacheWrite: c.CacheWrite + other.CacheWrite,
		Total:      c.Total + other.Total,
	}
}
