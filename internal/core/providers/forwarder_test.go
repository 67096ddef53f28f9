package providers

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"jsonrelay/internal/core"
	"jsonrelay/internal/core/engine"
	"jsonrelay/internal/pkg/logger"
)

func newTestForwarder(t *testing.T, opts ...Option) *HTTPForwarder {
	return NewHTTPForwarder(logger.NewLogger(zaptest.NewLogger(t)), opts...)
}

func TestForwardRelaysResponse(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
		gotHost    string
		gotMethod  string
	)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		gotHost = r.Host
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "sms")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"queued":false}`))
	}))
	defer target.Close()

	env := map[string]string{"SMS_TOKEN": "s3cret"}
	fwd := newTestForwarder(t, WithEnvLookup(func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}))

	ep := &engine.Endpoint{
		ID:        "alert-to-sms",
		TargetURL: target.URL + "/send",
		Timeout:   time.Second,
		Headers: map[string]string{
			"Authorization": "Bearer ${SMS_TOKEN}",
			"X-Missing":     "${NOT_SET}",
			"Host":          "sms.internal",
		},
	}

	resp, err := fwd.Forward(context.Background(), ep, []byte(`{"to":"+1"}`))
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if string(gotBody) != `{"to":"+1"}` {
		t.Errorf("body = %s", gotBody)
	}
	if gotHeaders.Get("Authorization") != "Bearer s3cret" {
		t.Errorf("Authorization = %q", gotHeaders.Get("Authorization"))
	}
	if gotHeaders.Get("X-Missing") != "${NOT_SET}" {
		t.Errorf("Unset placeholder must stay verbatim, got %q", gotHeaders.Get("X-Missing"))
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", gotHeaders.Get("Content-Type"))
	}
	if gotHost != "sms.internal" {
		t.Errorf("Host = %q", gotHost)
	}

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", resp.StatusCode)
	}
	if string(resp.Body) != `{"queued":false}` {
		t.Errorf("response body = %s", resp.Body)
	}
	if resp.Header.Get("X-Upstream") != "sms" {
		t.Error("Expected downstream headers to be relayed")
	}
	if resp.Header.Get("Content-Length") != "" {
		t.Error("Content-Length must not be relayed")
	}
}

func TestRelayHeaders(t *testing.T) {
	src := http.Header{
		"Connection":        {"keep-alive, X-Drop"},
		"X-Drop":            {"1"},
		"Keep-Alive":        {"timeout=5"},
		"Transfer-Encoding": {"chunked"},
		"Content-Length":    {"12"},
		"Content-Type":      {"application/json"},
		"Set-Cookie":        {"a=1", "b=2"},
	}

	got := relayHeaders(src)
	for _, h := range []string{"Connection", "X-Drop", "Keep-Alive", "Transfer-Encoding", "Content-Length"} {
		if _, ok := got[h]; ok {
			t.Errorf("Header %s must not be relayed", h)
		}
	}
	if got.Get("Content-Type") != "application/json" || len(got.Values("Set-Cookie")) != 2 {
		t.Errorf("Unexpected relayed headers %v", got)
	}
	if src.Get("X-Drop") != "1" {
		t.Error("Source headers must not be modified")
	}
	if relayHeaders(nil) == nil {
		t.Error("Expected an empty header for nil input")
	}
}

func TestForwardKeepsConfiguredContentType(t *testing.T) {
	var got string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Content-Type")
	}))
	defer target.Close()

	ep := &engine.Endpoint{
		ID:        "a",
		TargetURL: target.URL,
		Timeout:   time.Second,
		Headers:   map[string]string{"content-type": "application/vnd.api+json"},
	}
	if _, err := newTestForwarder(t).Forward(context.Background(), ep, []byte(`{}`)); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if got != "application/vnd.api+json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestForwardTimeout(t *testing.T) {
	release := make(chan struct{})
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer target.Close()
	defer close(release)

	ep := &engine.Endpoint{ID: "slow", TargetURL: target.URL, Timeout: 50 * time.Millisecond}
	_, err := newTestForwarder(t).Forward(context.Background(), ep, []byte(`{}`))
	if !errors.Is(err, core.ErrForwardTimeout) {
		t.Fatalf("got %v, want ErrForwardTimeout", err)
	}
}

func TestForwardConnectionRefused(t *testing.T) {
	ep := &engine.Endpoint{ID: "down", TargetURL: closedURL(t), Timeout: time.Second}

	_, err := newTestForwarder(t).Forward(context.Background(), ep, []byte(`{}`))
	if !errors.Is(err, core.ErrForwardFailed) {
		t.Fatalf("got %v, want ErrForwardFailed", err)
	}
	if errors.Is(err, core.ErrForwardTimeout) {
		t.Error("Connection failure must not be reported as a timeout")
	}
}

func TestForwardInvalidURL(t *testing.T) {
	ep := &engine.Endpoint{ID: "bad", TargetURL: "://nope", Timeout: time.Second}

	_, err := newTestForwarder(t).Forward(context.Background(), ep, []byte(`{}`))
	if !errors.Is(err, core.ErrForwardFailed) {
		t.Fatalf("got %v, want ErrForwardFailed", err)
	}
}

func TestForwardNoTarget(t *testing.T) {
	_, err := newTestForwarder(t).Forward(context.Background(), &engine.Endpoint{ID: "a"}, []byte(`{}`))
	if !errors.Is(err, core.ErrNoTarget) {
		t.Fatalf("got %v, want ErrNoTarget", err)
	}
}

func TestForwardObserver(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	var (
		mu    sync.Mutex
		calls []error
	)
	fwd := newTestForwarder(t, WithObserver(func(endpoint string, elapsed time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		if endpoint != "a" {
			t.Errorf("endpoint = %q", endpoint)
		}
		calls = append(calls, err)
	}))

	ok := &engine.Endpoint{ID: "a", TargetURL: target.URL, Timeout: time.Second}
	resp, err := fwd.Forward(context.Background(), ok, []byte(`{}`))
	if err != nil || resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Downstream 500 must be relayed, got %v / %v", resp, err)
	}

	down := &engine.Endpoint{ID: "a", TargetURL: closedURL(t), Timeout: time.Second}
	fwd.Forward(context.Background(), down, []byte(`{}`))

	if len(calls) != 2 || calls[0] != nil || calls[1] == nil {
		t.Errorf("Unexpected observations %v", calls)
	}
}

func TestForwardCircuitBreaker(t *testing.T) {
	ep := &engine.Endpoint{
		ID:        "flaky",
		TargetURL: closedURL(t),
		Timeout:   time.Second,
		Breaker:   &engine.BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute},
	}
	fwd := newTestForwarder(t)

	for i := 0; i < 2; i++ {
		_, err := fwd.Forward(context.Background(), ep, []byte(`{}`))
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("attempt %d: breaker opened too early", i)
		}
	}

	_, err := fwd.Forward(context.Background(), ep, []byte(`{}`))
	if !errors.Is(err, gobreaker.ErrOpenState) || !errors.Is(err, core.ErrForwardFailed) {
		t.Fatalf("got %v, want an open breaker reported as ErrForwardFailed", err)
	}

	// new settings after a reload start a fresh breaker
	reloaded := *ep
	reloaded.Breaker = &engine.BreakerConfig{FailureThreshold: 5, OpenTimeout: time.Minute}
	_, err = fwd.Forward(context.Background(), &reloaded, []byte(`{}`))
	if errors.Is(err, gobreaker.ErrOpenState) {
		t.Error("Expected a fresh breaker after the settings changed")
	}
}

func TestForwardBreakerIgnoresCallerCancel(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer target.Close()

	ep := &engine.Endpoint{
		ID:        "hangup",
		TargetURL: target.URL,
		Timeout:   time.Second,
		Breaker:   &engine.BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute},
	}
	fwd := newTestForwarder(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := fwd.Forward(cancelled, ep, []byte(`{}`))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("attempt %d: got %v, want context.Canceled", i, err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("attempt %d: caller cancellations opened the breaker", i)
		}
	}

	resp, err := fwd.Forward(context.Background(), ep, []byte(`{}`))
	if err != nil {
		t.Fatalf("Forward after cancellations failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestNewHTTPForwarderDefaultLogger(t *testing.T) {
	fwd := NewHTTPForwarder(nil)
	if fwd.log == nil || fwd.log.Logger == nil {
		t.Fatal("Expected a default logger")
	}
	if !fwd.log.Core().Enabled(zap.InfoLevel) || fwd.log.Core().Enabled(zap.DebugLevel) {
		t.Error("Expected the default logger at info level")
	}
}

func TestForwardBreakerIgnoresDownstreamStatus(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer target.Close()

	ep := &engine.Endpoint{
		ID:        "busy",
		TargetURL: target.URL,
		Timeout:   time.Second,
		Breaker:   &engine.BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute},
	}
	fwd := newTestForwarder(t)
	for i := 0; i < 3; i++ {
		resp, err := fwd.Forward(context.Background(), ep, []byte(`{}`))
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d", resp.StatusCode)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "A" {
			return "1", true
		}
		if name == "EMPTY" {
			return "", true
		}
		return "", false
	}

	tests := map[string]string{
		"plain":           "plain",
		"${A}":            "1",
		"x-${A}-${A}":     "x-1-1",
		"${B}":            "${B}",
		"${EMPTY}|":       "|",
		"$A ${A":          "$A ${A",
		"Bearer ${A}${B}": "Bearer 1${B}",
	}
	for in, want := range tests {
		if got := ExpandEnv(in, lookup); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

// closedURL returns a URL nothing is listening on.
func closedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return "http://" + addr
}
