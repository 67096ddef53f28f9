package engine

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Engine is an immutable snapshot of the compiled endpoint configuration.
// It is built once and shared read-only by every request.
type Engine struct {
	source    string
	loadedAt  time.Time
	ids       []string
	endpoints map[string]*Endpoint
}

// NewEngine builds a snapshot from compiled endpoints, keeping their order.
func NewEngine(source string, endpoints []*Endpoint) (*Engine, error) {
	e := &Engine{
		source:    source,
		loadedAt:  time.Now(),
		ids:       make([]string, 0, len(endpoints)),
		endpoints: make(map[string]*Endpoint, len(endpoints)),
	}
	for _, ep := range endpoints {
		if _, dup := e.endpoints[ep.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate endpoint %q", ErrConfiguration, ep.ID)
		}
		e.ids = append(e.ids, ep.ID)
		e.endpoints[ep.ID] = ep
	}
	return e, nil
}

// Endpoint returns the endpoint registered under id.
func (e *Engine) Endpoint(id string) (*Endpoint, bool) {
	ep, ok := e.endpoints[id]
	return ep, ok
}

// IDs returns the endpoint ids in configuration order.
func (e *Engine) IDs() []string {
	ids := make([]string, len(e.ids))
	copy(ids, e.ids)
	return ids
}

// Source returns the file the snapshot was loaded from, if any.
func (e *Engine) Source() string {
	return e.source
}

// LoadedAt returns when the snapshot was built.
func (e *Engine) LoadedAt() time.Time {
	return e.loadedAt
}

// MaxTimeout returns the largest forwarding timeout of any endpoint.
func (e *Engine) MaxTimeout() time.Duration {
	var max time.Duration
	for _, ep := range e.endpoints {
		if ep.Timeout > max {
			max = ep.Timeout
		}
	}
	return max
}

// Holder publishes the current snapshot. A published Engine is never
// modified; reloading stores a new one.
type Holder struct {
	current atomic.Pointer[Engine]
}

// NewHolder returns a holder publishing e, which may be nil.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	if e != nil {
		h.current.Store(e)
	}
	return h
}

// Load returns the current snapshot, or nil before one is stored.
func (h *Holder) Load() *Engine {
	return h.current.Load()
}

// Store publishes a new snapshot.
func (h *Holder) Store(e *Engine) {
	h.current.Store(e)
}
