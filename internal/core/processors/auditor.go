package processors

import (
	"go.uber.org/zap"

	"jsonrelay/internal/core"
	"jsonrelay/internal/core/security"
)

// PayloadAuditor debug-logs the inbound and transformed payloads with
// secrets redacted. It does nothing unless debug logging is enabled.
type PayloadAuditor struct {
	scanner *security.Scanner
}

// NewPayloadAuditor creates an auditor using scanner for redaction.
func NewPayloadAuditor(scanner *security.Scanner) *PayloadAuditor {
	if scanner == nil {
		scanner = security.NewScanner()
	}
	return &PayloadAuditor{scanner: scanner}
}

func (a *PayloadAuditor) Name() string {
	return "payload-auditor"
}

// Priority places the auditor after the request logger and before the
// transformer, so it sees the original payload.
func (a *PayloadAuditor) Priority() int {
	return -50
}

func (a *PayloadAuditor) OnRequest(ctx *core.RelayContext, body []byte) ([]byte, error) {
	if ctx.Log.Core().Enabled(zap.DebugLevel) {
		ctx.Log.Debug("Original payload", zap.String("payload", a.scanner.Sanitize(string(body))))
	}
	return body, nil
}

func (a *PayloadAuditor) OnResponse(ctx *core.RelayContext, body []byte) ([]byte, error) {
	if !ctx.Log.Core().Enabled(zap.DebugLevel) {
		return body, nil
	}
	if v, ok := ctx.GetMetadata(core.MetaTransformed); ok {
		if transformed, ok := v.([]byte); ok {
			ctx.Log.Debug("Transformed payload", zap.String("payload", a.scanner.Sanitize(string(transformed))))
		}
	}
	return body, nil
}
