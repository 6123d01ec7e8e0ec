package mock

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/agentruntime/agent"
)

var _ agent.Clock = (*Clock)(nil)

// Clock is a deterministic test double for agent.Clock. By default it does
// not actually sleep; it records the cumulative requested duration so tests
// can assert on backoff behavior (e.g. "total delay >= 10ms") without
// waiting in real time. Set SleepFn to customize behavior, e.g. to honor
// context cancellation.
type Clock struct {
	SleepFn func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	total time.Duration
	calls int
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.total += d
	c.calls++
	c.mu.Unlock()

	if c.SleepFn != nil {
		return c.SleepFn(ctx, d)
	}
	return ctx.Err()
}

// TotalSlept returns the cumulative duration requested across all calls.
func (c *Clock) TotalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Calls returns how many times Sleep was invoked.
func (c *Clock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
