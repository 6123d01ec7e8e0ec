package agentruntime

// ModelCost is the per-million-token price table for one Model, one entry
// per Usage category.
type ModelCost struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
}

// Model describes a provider-specific model entry. The catalog that maps
// provider/id to Model is out of scope; Model itself, and cost accounting
// against it, are not.
type Model struct {
	ID             string
	Name           string
	API            string
	Provider       string
	BaseURL        string
	Reasoning      bool
	Input          []string
	Cost           ModelCost
	ContextWindow  int
	MaxTokens      int
	Headers        map[string]string
}

// CalculateCost is a pure function of Model and Usage. Each of the four
// token categories is priced independently at its per-million rate; Total
// is their sum. Grounded on the original implementation's
// calculate_cost(model, usage): cost = tokens * (price_per_million / 1e6).
func CalculateCost(model Model, usage Usage) UsageCost {
	c := UsageCost{
		Input:      float64(usage.InputTokens) * (model.Cost.Input / 1_000_000),
		Output:     float64(usage.OutputTokens) * (model.Cost.Output / 1_000_000),
		CacheRead:  float64(usage.CacheReadTokens) * (model.Cost.CacheRead / 1_000_000),
		CacheWrite: float64(usage.CacheWriteTokens) * (model.Cost.CacheWrite / 1_000_000),
	}
	c.Total = c.Input + c.Output + c.CacheRead + c.CacheWrite
	return c
}

// Finalize sets TotalTokens and Cost on u against cost, the active Model's
// price table. Adapters call this once a message's usage is fully known
// (on the terminal Done event), so every AssistantMessage carries its own
// cost without the caller needing the Model that produced it.
func (u Usage) Finalize(cost ModelCost) Usage {
	u.TotalTokens = u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheWriteTokens
	u.Cost = CalculateCost(Model{Cost: cost}, u)
	return u
}
