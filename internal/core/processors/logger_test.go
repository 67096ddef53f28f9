package processors

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"jsonrelay/internal/core"
	"jsonrelay/internal/core/engine"
)

func newObservedContext(level zap.AtomicLevel) (*core.RelayContext, *observer.ObservedLogs) {
	observedCore, logs := observer.New(level)
	testLogger := zap.New(observedCore, zap.AddCaller())
	ctx := core.NewRelayContext(context.Background(), testLogger)
	ctx.EndpointID = "alert-to-sms"
	ctx.Endpoint = &engine.Endpoint{
		ID: "alert-to-sms",
		Rules: engine.RuleSet{
			{Field: "to", Rule: engine.DirectMapping{Expr: "$.phone"}},
		},
	}
	return ctx, logs
}

func TestRequestLoggerOnRequest(t *testing.T) {
	ctx, logs := newObservedContext(zap.NewAtomicLevelAt(zap.InfoLevel))

	// 创建测试请求体
	body := []byte(`{"phone": "+15550100"}`)

	out, err := NewRequestLogger().OnRequest(ctx, body)
	if err != nil {
		t.Fatalf("OnRequest failed: %v", err)
	}
	if string(out) != string(body) {
		t.Errorf("Expected body to pass through, got %s", out)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Message != "Request Started" {
		t.Errorf("Expected message 'Request Started', got '%s'", entry.Message)
	}
	if entry.Caller.File == "" || !strings.HasSuffix(entry.Caller.File, "processors/logger.go") {
		t.Errorf("Expected caller in processors/logger.go, got %s", entry.Caller.File)
	}

	fields := entry.ContextMap()
	if fields["payload_bytes"] != int64(len(body)) {
		t.Errorf("Expected payload_bytes=%d, got %v", len(body), fields["payload_bytes"])
	}
	if fields["rules"] != int64(1) {
		t.Errorf("Expected rules=1, got %v", fields["rules"])
	}
}

func TestRequestLoggerOnResponse(t *testing.T) {
	ctx, logs := newObservedContext(zap.NewAtomicLevelAt(zap.InfoLevel))
	ctx.SetMetadata(core.MetaStatusCode, 202)

	body := []byte(`{"queued":true}`)
	if _, err := NewRequestLogger().OnResponse(ctx, body); err != nil {
		t.Fatalf("OnResponse failed: %v", err)
	}

	entries := logs.FilterMessage("Request Finished").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 'Request Finished' entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status_code"] != int64(202) {
		t.Errorf("Expected status_code=202, got %v", fields["status_code"])
	}
	if fields["response_bytes"] != int64(len(body)) {
		t.Errorf("Expected response_bytes=%d, got %v", len(body), fields["response_bytes"])
	}
	if _, ok := fields["latency"]; !ok {
		t.Error("Expected latency field")
	}
}

func TestRequestLoggerPriority(t *testing.T) {
	p := NewRequestLogger()
	if p.Priority() >= NewPayloadAuditor(nil).Priority() {
		t.Error("Request logger must run before the payload auditor")
	}
	if p.Name() != "request-logger" {
		t.Errorf("Unexpected name %q", p.Name())
	}
}
