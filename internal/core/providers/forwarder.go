package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"jsonrelay/internal/core"
	"jsonrelay/internal/core/engine"
	"jsonrelay/internal/pkg/logger"
)

// ForwardObserver is notified after every forwarding attempt.
type ForwardObserver func(endpoint string, elapsed time.Duration, err error)

// HTTPForwarder implements core.Forwarder by POSTing JSON to the endpoint's
// target URL and returning whatever the target answers.
type HTTPForwarder struct {
	client    *http.Client
	log       *logger.Logger
	lookupEnv func(string) (string, bool)
	observer  ForwardObserver

	mu       sync.Mutex
	breakers map[string]*breakerEntry
}

type breakerEntry struct {
	config engine.BreakerConfig
	cb     *gobreaker.CircuitBreaker
}

// Option configures an HTTPForwarder.
type Option func(*HTTPForwarder)

// WithClient replaces the HTTP client. Timeouts come from the endpoint, so
// the client should not set its own.
func WithClient(client *http.Client) Option {
	return func(f *HTTPForwarder) {
		f.client = client
	}
}

// WithEnvLookup replaces os.LookupEnv for header placeholders.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(f *HTTPForwarder) {
		f.lookupEnv = lookup
	}
}

// WithObserver registers a ForwardObserver.
func WithObserver(observer ForwardObserver) Option {
	return func(f *HTTPForwarder) {
		f.observer = observer
	}
}

// NewHTTPForwarder creates a forwarder
func NewHTTPForwarder(log *logger.Logger, opts ...Option) *HTTPForwarder {
	if log == nil {
		zapLogger, err := logger.New("info")
		if err != nil {
			zapLogger = zap.NewNop()
		}
		log = logger.NewLogger(zapLogger)
	}
	f := &HTTPForwarder{
		client:   &http.Client{},
		log:      log,
		breakers: make(map[string]*breakerEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward sends body to ep.TargetURL. Downstream HTTP errors are returned as
// responses; only timeouts and transport failures are errors.
func (f *HTTPForwarder) Forward(ctx context.Context, ep *engine.Endpoint, body []byte) (*core.Response, error) {
	if ep.TargetURL == "" {
		return nil, core.ErrNoTarget
	}

	start := time.Now()
	resp, err := f.forward(ctx, ep, body)
	if f.observer != nil {
		f.observer(ep.ID, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	f.log.Info("Forwarded to target",
		zap.String("endpoint", ep.ID),
		zap.String("target", ep.TargetURL),
		zap.Int("status", resp.StatusCode),
	)
	return resp, nil
}

func (f *HTTPForwarder) forward(ctx context.Context, ep *engine.Endpoint, body []byte) (*core.Response, error) {
	cb := f.breaker(ep)
	if cb == nil {
		return f.send(ctx, ep, body)
	}

	out, err := cb.Execute(func() (interface{}, error) {
		return f.send(ctx, ep, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", core.ErrForwardFailed, err)
		}
		return nil, err
	}
	return out.(*core.Response), nil
}

// send performs one POST bounded by the endpoint timeout.
func (f *HTTPForwarder) send(ctx context.Context, ep *engine.Endpoint, body []byte) (*core.Response, error) {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = engine.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TargetURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", core.ErrForwardFailed, err)
	}

	for key, value := range ep.Headers {
		value = ExpandEnv(value, f.lookupEnv)
		if strings.EqualFold(key, "Host") {
			httpReq.Host = value
			continue
		}
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	return &core.Response{
		StatusCode: resp.StatusCode,
		Header:     relayHeaders(resp.Header),
		Body:       respBody,
	}, nil
}

// classify maps a transport error onto the forwarding error kinds.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", core.ErrForwardTimeout, err)
	}
	return fmt.Errorf("%w: %w", core.ErrForwardFailed, err)
}

// breaker returns the circuit breaker for ep, or nil when it has none. A
// reload that changes the breaker settings starts a fresh breaker.
func (f *HTTPForwarder) breaker(ep *engine.Endpoint) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ep.Breaker == nil {
		delete(f.breakers, ep.ID)
		return nil
	}
	if entry, ok := f.breakers[ep.ID]; ok && entry.config == *ep.Breaker {
		return entry.cb
	}

	threshold := ep.Breaker.FailureThreshold
	settings := gobreaker.Settings{
		Name:        ep.ID,
		MaxRequests: 1,
		Timeout:     ep.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a caller hanging up says nothing about the target
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			f.log.Warn("Circuit breaker state change",
				zap.String("endpoint", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	cb := gobreaker.NewCircuitBreaker(settings)
	f.breakers[ep.ID] = &breakerEntry{config: *ep.Breaker, cb: cb}
	return cb
}
