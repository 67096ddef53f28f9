package processors

import (
	"time"

	"go.uber.org/zap"

	"jsonrelay/internal/core"
)

// RequestLogger 记录每个请求的开始和结束
type RequestLogger struct {
	name     string
	priority int
}

// NewRequestLogger creates the request logging processor
func NewRequestLogger() *RequestLogger {
	return &RequestLogger{
		name:     "request-logger",
		priority: -100, // 必须是第一个执行
	}
}

// Name returns the processor name
func (r *RequestLogger) Name() string {
	return r.name
}

// Priority returns the processor priority
func (r *RequestLogger) Priority() int {
	return r.priority
}

// OnRequest logs the start of a relay. request_id and endpoint are already
// attached to ctx.Log by the server.
func (r *RequestLogger) OnRequest(ctx *core.RelayContext, body []byte) ([]byte, error) {
	rules := 0
	if ctx.Endpoint != nil {
		rules = len(ctx.Endpoint.Rules)
	}
	ctx.Log.Info("Request Started",
		zap.Int("payload_bytes", len(body)),
		zap.Int("rules", rules),
	)
	return body, nil
}

// OnResponse logs the end of a relay with its latency and downstream status.
func (r *RequestLogger) OnResponse(ctx *core.RelayContext, body []byte) ([]byte, error) {
	fields := []zap.Field{
		zap.Duration("latency", time.Since(ctx.StartTime)),
		zap.Int("response_bytes", len(body)),
	}
	if status, ok := ctx.GetMetadata(core.MetaStatusCode); ok {
		if code, ok := status.(int); ok {
			fields = append(fields, zap.Int("status_code", code))
		}
	}
	ctx.Log.Info("Request Finished", fields...)
	return body, nil
}
