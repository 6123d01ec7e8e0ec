// Package mock provides test doubles for agentruntime interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/agentruntime"
)

// Interface compliance check.
var _ agentruntime.Provider = (*Provider)(nil)

// Provider is a test double for agentruntime.Provider.
// Set StreamFn before calling Stream.
type Provider struct {
	StreamFn func(ctx context.Context, req agentruntime.Request) (agentruntime.Stream, error)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req agentruntime.Request) (agentruntime.Stream, error) {
	return p.StreamFn(ctx, req)
}
