package processors

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"jsonrelay/internal/core"
	"jsonrelay/internal/core/engine"
)

// OmissionRecorder receives every field left out of an output document.
type OmissionRecorder interface {
	RecordOmission(endpoint string, reason engine.OmitReason)
}

// Transformer rewrites the inbound payload with the endpoint's rule set.
type Transformer struct {
	recorder OmissionRecorder
}

// NewTransformer creates the transformation processor. recorder may be nil.
func NewTransformer(recorder OmissionRecorder) *Transformer {
	return &Transformer{recorder: recorder}
}

func (t *Transformer) Name() string {
	return "transformer"
}

func (t *Transformer) Priority() int {
	return 0
}

// OnRequest applies the rule set bound to ctx and returns the output document.
func (t *Transformer) OnRequest(ctx *core.RelayContext, body []byte) ([]byte, error) {
	if ctx.Endpoint == nil {
		return nil, errors.New("no endpoint bound to request")
	}

	result, err := engine.Apply(gjson.ParseBytes(body), ctx.Endpoint.Rules)
	if err != nil {
		return nil, err
	}

	for _, o := range result.Omitted {
		if o.Reason == engine.OmitUnknownFunction {
			ctx.Log.Warn("Unknown function", zap.String("field", o.Field), zap.String("function", o.Detail))
		} else {
			ctx.Log.Debug("Field omitted", zap.String("field", o.Field), zap.String("reason", string(o.Reason)))
		}
		if t.recorder != nil {
			t.recorder.RecordOmission(ctx.EndpointID, o.Reason)
		}
	}

	out, err := result.Document.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode output: %w", engine.ErrTransformation, err)
	}
	ctx.SetMetadata(core.MetaTransformed, out)
	ctx.SetMetadata(core.MetaOmitted, result.Omitted)

	ctx.Log.Info("Transformed payload",
		zap.Int("fields", len(result.Document)),
		zap.Int("omitted", len(result.Omitted)),
	)
	return out, nil
}

// OnResponse relays the downstream body unchanged.
func (t *Transformer) OnResponse(ctx *core.RelayContext, body []byte) ([]byte, error) {
	return body, nil
}
