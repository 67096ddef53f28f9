package core

// Processor is the middleware interface for the relay pipeline
type Processor interface {
	// Name returns the processor name
	Name() string
	// Priority returns the execution priority (lower = earlier)
	Priority() int
	// OnRequest receives the inbound body and returns the body handed to the
	// next processor; the last result is forwarded downstream.
	OnRequest(ctx *RelayContext, body []byte) ([]byte, error)
	// OnResponse receives the downstream response body.
	OnResponse(ctx *RelayContext, body []byte) ([]byte, error)
}
