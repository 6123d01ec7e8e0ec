package agentruntime_test

import (
	"testing"

	"github.com/fwojciec/agentruntime"
	"github.com/stretchr/testify/assert"
)

func TestRole_Values(t *testing.T) {
	t.Parallel()
	assert.Equal(t, agentruntime.Role("user"), agentruntime.RoleUser)
	assert.Equal(t, agentruntime.Role("assistant"), agentruntime.RoleAssistant)
	assert.Equal(t, agentruntime.Role("tool_result"), agentruntime.RoleToolResult)
}

func TestStopReason_Values(t *testing.T) {
	t.Parallel()
	assert.Equal(t, agentruntime.StopReason("stop"), agentruntime.StopEndTurn)
	assert.Equal(t, agentruntime.StopReason("length"), agentruntime.StopLength)
	assert.Equal(t, agentruntime.StopReason("tool_use"), agentruntime.StopToolUse)
	assert.Equal(t, agentruntime.StopReason("error"), agentruntime.StopError)
	assert.Equal(t, agentruntime.StopReason("aborted"), agentruntime.StopAborted)
}

func TestUsage_ZeroValue(t *testing.T) {
	t.Parallel()
	var u agentruntime.Usage
	assert.Equal(t, 0, u.InputTokens)
	assert.Equal(t, 0, u.OutputTokens)
}

func TestUsage_Add(t *testing.T) {
	t.Parallel()
	a := agentruntime.Usage{InputTokens: 10, OutputTokens: 5, CacheReadTokens: 2, CacheWriteTokens: 1}
	b := agentruntime.Usage{InputTokens: 3, OutputTokens: 4, CacheReadTokens: 0, CacheWriteTokens: 6}
	assert.Equal(t, agentruntime.Usage{InputTokens: 13, OutputTokens: 9, CacheReadTokens: 2, CacheWriteTokens: 7}, a.Add(b))
}

func TestCalculateCost_Linearity(t *testing.T) {
	t.Parallel()
	model := agentruntime.Model{
		Cost: agentruntime.ModelCost{Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	}
	a := agentruntime.Usage{InputTokens: 1_000_000, OutputTokens: 500_000, CacheReadTokens: 200_000, CacheWriteTokens: 100_000}
	b := agentruntime.Usage{InputTokens: 250_000, OutputTokens: 10_000, CacheReadTokens: 0, CacheWriteTokens: 50_000}

	combined := agentruntime.CalculateCost(model, a.Add(b))
	summed := agentruntime.CalculateCost(model, a).Add(agentruntime.CalculateCost(model, b))

	assert.InDelta(t, summed.Total, combined.Total, 1e-9)
	assert.InDelta(t, summed.Input, combined.Input, 1e-9)
	assert.InDelta(t, summed.Output, combined.Output, 1e-9)
}

func TestUsage_Finalize(t *testing.T) {
	t.Parallel()
	u := agentruntime.Usage{InputTokens: 1_000_000, OutputTokens: 500_000, CacheReadTokens: 200_000, CacheWriteTokens: 100_000}
	cost := agentruntime.ModelCost{Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75}

	finalized := u.Finalize(cost)

	assert.Equal(t, 1_800_000, finalized.TotalTokens)
	want := agentruntime.CalculateCost(agentruntime.Model{Cost: cost}, u)
	assert.Equal(t, want, finalized.Cost)
}

func TestCalculateCost_PerCategory(t *testing.T) {
	t.Parallel()
	model := agentruntime.Model{
		Cost: agentruntime.ModelCost{Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	}
	usage := agentruntime.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000, CacheReadTokens: 1_000_000, CacheWriteTokens: 1_000_000}
	cost := agentruntime.CalculateCost(model, usage)
	assert.InDelta(t, 3.0, cost.Input, 1e-9)
	assert.InDelta(t, 15.0, cost.Output, 1e-9)
	assert.InDelta(t, 0.3, cost.CacheRead, 1e-9)
	assert.InDelta(t, 3.75, cost.CacheWrite, 1e-9)
	assert.InDelta(t, 22.05, cost.Total, 1e-9)
}
