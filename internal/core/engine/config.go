package engine

import "time"

// DefaultTimeout bounds a forwarding call when an endpoint sets no timeout.
const DefaultTimeout = 30 * time.Second

// Endpoint is the compiled configuration of one endpoint.
type Endpoint struct {
	// ID is the key of the endpoint in the configuration file and the path
	// segment it is served under.
	ID string
	// TargetURL receives the transformed document.
	TargetURL string
	// Headers are sent with the forwarded request. Values may contain
	// ${NAME} placeholders that are expanded from the environment per request.
	Headers map[string]string
	// Timeout bounds the forwarding call.
	Timeout time.Duration
	// Rules build the outbound document.
	Rules RuleSet
	// Breaker enables a circuit breaker around forwarding when non-nil.
	Breaker *BreakerConfig
}

// BreakerConfig configures the optional per-endpoint circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive forwarding failures
	// that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before letting a
	// trial request through.
	OpenTimeout time.Duration
}

// Warning is a non-fatal problem found while compiling configuration.
type Warning struct {
	Endpoint string
	Field    string
	Message  string
}

func (w Warning) String() string {
	if w.Field == "" {
		return w.Endpoint + ": " + w.Message
	}
	return w.Endpoint + "." + w.Field + ": " + w.Message
}

// Configuration file keys
const (
	keyEndpoints      = "endpoints"
	keyTargetURL      = "target_url"
	keyHeaders        = "headers"
	keyTimeout        = "timeout"
	keyTransformation = "transformation"
	keyBreaker        = "circuit_breaker"
	keyFunction       = "function"
	keyFields         = "fields"
	keyCondition      = "condition"
	keyValue          = "value"
)
