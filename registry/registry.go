// Package registry maps provider API tags (e.g. "anthropic-messages") to
// the agentruntime.Provider adapter that serves them, grounded on the
// original implementation's register_api_provider/get_api_provider/
// unregister_api_providers/clear_api_providers: last-writer-wins per tag,
// with source_id-scoped bulk removal so a reloaded plugin or test fixture
// can cleanly retract everything it registered.
package registry

import (
	"sync"

	"github.com/fwojciec/agentruntime"
)

type entry struct {
	provider agentruntime.Provider
	sourceID string
}

// Registry is a concurrency-safe lookup from api tag to Provider.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register binds apiTag to adapter. A later Register call for the same tag
// replaces the earlier one. sourceID groups registrations for bulk removal
// via Unregister; pass "" if the registration has no natural group.
func (r *Registry) Register(apiTag string, adapter agentruntime.Provider, sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[apiTag] = entry{provider: adapter, sourceID: sourceID}
}

// Get returns the Provider registered for apiTag, or ErrUnknownAPI if none
// is registered.
func (r *Registry) Get(apiTag string) (agentruntime.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[apiTag]
	if !ok {
		return nil, agentruntime.ErrUnknownAPI
	}
	return e.provider, nil
}

// Unregister removes every registration whose sourceID matches.
func (r *Registry) Unregister(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tag, e := range r.entries {
		if e.sourceID == sourceID {
			delete(r.entries, tag)
		}
	}
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]entry)
}
