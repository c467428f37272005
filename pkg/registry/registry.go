// Package registry provides registries for stream handlers and stream strategies.
package registry

import (
	"sync"

	"ytaudio-proxy/pkg/interfaces"
)

// StreamHandlerRegistry manages stream handlers.
type StreamHandlerRegistry struct {
	mu       sync.RWMutex
	handlers []interfaces.StreamHandler
	fallback interfaces.StreamHandler
}

// NewStreamHandlerRegistry creates a new stream handler registry.
func NewStreamHandlerRegistry() *StreamHandlerRegistry {
	return &StreamHandlerRegistry{
		handlers: make([]interfaces.StreamHandler, 0),
	}
}

// Register adds a stream handler to the registry.
func (r *StreamHandlerRegistry) Register(handler interfaces.StreamHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, handler)
}

// SetFallback sets the fallback handler used when no handler matches.
func (r *StreamHandlerRegistry) SetFallback(handler interfaces.StreamHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

// Get returns the first handler that accepts the URL and content type.
func (r *StreamHandlerRegistry) Get(url, contentType string) interfaces.StreamHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.handlers {
		if h.CanHandle(url, contentType) {
			return h
		}
	}
	return r.fallback
}

// StrategyRegistry holds stream strategies in the order they are tried.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies []interfaces.Strategy
	byName     map[string]interfaces.Strategy
}

// NewStrategyRegistry creates an empty strategy registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		strategies: make([]interfaces.Strategy, 0),
		byName:     make(map[string]interfaces.Strategy),
	}
}

// Register appends a strategy. Registering a name twice replaces the
// earlier entry in place.
func (r *StrategyRegistry) Register(s interfaces.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[s.Name()]; ok {
		for i, existing := range r.strategies {
			if existing.Name() == s.Name() {
				r.strategies[i] = s
			}
		}
	} else {
		r.strategies = append(r.strategies, s)
	}
	r.byName[s.Name()] = s
}

// GetByName returns a strategy by its name, or nil.
func (r *StrategyRegistry) GetByName(name string) interfaces.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Remove drops the named strategy, keeping the order of the rest.
func (r *StrategyRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	kept := r.strategies[:0]
	for _, s := range r.strategies {
		if s.Name() != name {
			kept = append(kept, s)
		}
	}
	r.strategies = kept
}

// All returns the strategies in registration order.
func (r *StrategyRegistry) All() []interfaces.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]interfaces.Strategy, len(r.strategies))
	copy(result, r.strategies)
	return result
}

// Names returns strategy names in registration order.
func (r *StrategyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}
