package core

import (
	"context"
	"net/http"

	"jsonrelay/internal/core/engine"
)

// Response is a downstream response relayed to the caller as-is.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder delivers a transformed document to an endpoint's target.
type Forwarder interface {
	// Forward posts body to ep's target. Any HTTP status is a successful
	// forward; only transport failures return an error, wrapping
	// ErrForwardTimeout or ErrForwardFailed.
	Forward(ctx context.Context, ep *engine.Endpoint, body []byte) (*Response, error)
}
