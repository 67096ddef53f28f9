package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"jsonrelay/internal/core/engine"
)

// Metadata keys shared between the dispatcher and processors.
const (
	// MetaStatusCode holds the downstream status code (int).
	MetaStatusCode = "status_code"
	// MetaTransformed holds the outbound document ([]byte).
	MetaTransformed = "transformed"
	// MetaOmitted holds the omitted fields ([]engine.Omission).
	MetaOmitted = "omitted"
)

// RelayContext extends the request context with relay-specific fields.
type RelayContext struct {
	context.Context
	RequestID  string
	EndpointID string
	Endpoint   *engine.Endpoint
	StartTime  time.Time
	Log        *zap.Logger

	mu       sync.RWMutex
	metadata map[string]interface{}
}

// NewRelayContext creates a RelayContext for one inbound request.
func NewRelayContext(ctx context.Context, logger *zap.Logger) *RelayContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayContext{
		Context:   ctx,
		StartTime: time.Now(),
		Log:       logger,
		metadata:  make(map[string]interface{}),
	}
}

// SetMetadata sets a metadata value (thread-safe)
func (c *RelayContext) SetMetadata(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// GetMetadata gets a metadata value (thread-safe)
func (c *RelayContext) GetMetadata(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}
