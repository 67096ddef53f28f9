package core

import "errors"

var (
	// ErrNotReady is returned while no endpoint configuration is published.
	ErrNotReady = errors.New("configuration not loaded")

	// ErrUnknownEndpoint is returned for an endpoint id that is not configured.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrInvalidPayload is returned when the request body is not well-formed JSON.
	ErrInvalidPayload = errors.New("invalid JSON payload")

	// ErrNoTarget is returned when an endpoint has no target URL.
	ErrNoTarget = errors.New("target URL not configured")

	// ErrForwardTimeout is returned when the downstream call exceeds the
	// endpoint timeout.
	ErrForwardTimeout = errors.New("request to target service timed out")

	// ErrForwardFailed is returned when the downstream call fails at the
	// transport level or is short-circuited by an open breaker.
	ErrForwardFailed = errors.New("error forwarding request")
)
