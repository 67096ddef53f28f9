package core

import (
	"fmt"

	"github.com/bytedance/sonic"

	"jsonrelay/internal/core/engine"
)

// Dispatcher routes an inbound payload to its endpoint, runs the pipeline
// and forwards the result.
type Dispatcher struct {
	holder    *engine.Holder
	pipeline  *Pipeline
	forwarder Forwarder
}

// NewDispatcher creates a dispatcher reading endpoints from holder.
func NewDispatcher(holder *engine.Holder, pipeline *Pipeline, forwarder Forwarder) *Dispatcher {
	return &Dispatcher{
		holder:    holder,
		pipeline:  pipeline,
		forwarder: forwarder,
	}
}

// Dispatch handles one submission to endpointID. The snapshot is read once,
// so a concurrent reload never changes the endpoint mid-request.
func (d *Dispatcher) Dispatch(ctx *RelayContext, endpointID string, body []byte) (*Response, error) {
	snapshot := d.holder.Load()
	if snapshot == nil {
		return nil, ErrNotReady
	}

	ep, ok := snapshot.Endpoint(endpointID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpointID)
	}
	if !sonic.Valid(body) {
		return nil, ErrInvalidPayload
	}

	ctx.EndpointID = endpointID
	ctx.Endpoint = ep

	out, err := d.pipeline.ExecuteRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	if ep.TargetURL == "" {
		return nil, ErrNoTarget
	}

	resp, err := d.forwarder.Forward(ctx, ep, out)
	if err != nil {
		return nil, err
	}
	ctx.SetMetadata(MetaStatusCode, resp.StatusCode)

	resp.Body, err = d.pipeline.ExecuteResponse(ctx, resp.Body)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
