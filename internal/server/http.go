package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"jsonrelay/internal/config"
	"jsonrelay/internal/core"
	"jsonrelay/internal/core/engine"
	"jsonrelay/internal/core/processors"
	"jsonrelay/internal/core/providers"
	"jsonrelay/internal/core/security"
	"jsonrelay/internal/metrics"
	"jsonrelay/internal/pkg/logger"
)

// ServiceName is reported by the root endpoint.
const ServiceName = "JSON Transformation Service"

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// HTTPServer serves the relay endpoints and the health routes
type HTTPServer struct {
	*Server
	settings      config.ServerSettings
	holder        *engine.Holder
	dispatcher    *core.Dispatcher
	metrics       *metrics.Metrics
	exposeMetrics bool
}

// Option configures an HTTPServer.
type Option func(*serverOptions)

type serverOptions struct {
	forwarder   core.Forwarder
	hideMetrics bool
	redact      []config.RedactRule
}

// WithForwarder replaces the default HTTP forwarder.
func WithForwarder(f core.Forwarder) Option {
	return func(o *serverOptions) {
		o.forwarder = f
	}
}

// WithoutMetricsRoute keeps collecting metrics but does not serve /metrics.
func WithoutMetricsRoute() Option {
	return func(o *serverOptions) {
		o.hideMetrics = true
	}
}

// WithRedactRules masks extra patterns in debug-logged payloads.
func WithRedactRules(rules []config.RedactRule) Option {
	return func(o *serverOptions) {
		o.redact = append(o.redact, rules...)
	}
}

// NewHTTPServer wires the pipeline, forwarder and dispatcher. A nil m gets
// a private registry.
func NewHTTPServer(settings config.ServerSettings, holder *engine.Holder, log *logger.Logger, m *metrics.Metrics, opts ...Option) *HTTPServer {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if holder == nil {
		holder = engine.NewHolder(nil)
	}

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.forwarder == nil {
		o.forwarder = providers.NewHTTPForwarder(log, providers.WithObserver(m.ObserveForward))
	}

	scanner := security.NewScanner()
	for _, rule := range o.redact {
		if err := scanner.AddRule(rule.Name, rule.Pattern, rule.Replacement); err != nil {
			log.Warn("Skipping redaction rule", zap.String("rule", rule.Name), zap.Error(err))
		}
	}

	pipeline := core.NewPipeline(
		processors.NewRequestLogger(),
		processors.NewPayloadAuditor(scanner),
		processors.NewTransformer(m),
	)

	base := New(settings.Addr(), log)
	if settings.ShutdownTimeout > 0 {
		base.shutdownTimeout = settings.ShutdownTimeout
	}

	return &HTTPServer{
		Server:        base,
		settings:      settings,
		holder:        holder,
		dispatcher:    core.NewDispatcher(holder, pipeline, o.forwarder),
		metrics:       m,
		exposeMetrics: !o.hideMetrics,
	}
}

// Handler returns the HTTP handler with every route registered
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	if s.exposeMetrics {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /{endpoint_id}", s.handleRelay)

	return mux
}

// Start serves until ctx is cancelled
func (s *HTTPServer) Start(ctx context.Context) error {
	return s.serve(ctx, s.Handler(), s.settings.ReadTimeout, s.writeTimeout())
}

// writeTimeout leaves room for the slowest endpoint when not configured.
func (s *HTTPServer) writeTimeout() time.Duration {
	if s.settings.WriteTimeout > 0 {
		return s.settings.WriteTimeout
	}
	timeout := time.Minute
	if snapshot := s.holder.Load(); snapshot != nil {
		if t := snapshot.MaxTimeout() + 10*time.Second; t > timeout {
			timeout = t
		}
	}
	return timeout
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []byte(`{"status":"ok"}`))
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.holder.Load() == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Service not ready - configuration not loaded")
		return
	}
	writeJSON(w, http.StatusOK, []byte(`{"status":"ok"}`))
}

func (s *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if snapshot := s.holder.Load(); snapshot != nil {
		ids = snapshot.IDs()
	}

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "service", ServiceName)
	body, _ = sjson.SetBytes(body, "status", "running")
	body, err := sjson.SetBytes(body, "endpoints", ids)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// handleRelay transforms and forwards one submission
func (s *HTTPServer) handleRelay(w http.ResponseWriter, r *http.Request) {
	endpointID := r.PathValue("endpoint_id")

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	reqLog := s.log.With(
		zap.String("request_id", requestID),
		zap.String("endpoint", endpointID),
	)
	ctx := core.NewRelayContext(r.Context(), reqLog.Logger)
	ctx.RequestID = requestID

	// unknown ids are rejected before the body is read
	snapshot := s.holder.Load()
	if snapshot == nil {
		s.reject(ctx, w, endpointID, core.ErrNotReady)
		return
	}
	if _, ok := snapshot.Endpoint(endpointID); !ok {
		s.reject(ctx, w, endpointID, fmt.Errorf("%w: %s", core.ErrUnknownEndpoint, endpointID))
		return
	}
	s.extendWriteDeadline(ctx, w)

	body, err := s.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(ctx, w, endpointID, http.StatusRequestEntityTooLarge, metrics.OutcomeInvalidPayload, "Request body too large", err)
			return
		}
		s.fail(ctx, w, endpointID, http.StatusBadRequest, metrics.OutcomeInvalidPayload, "Invalid JSON payload", err)
		return
	}

	resp, err := s.dispatcher.Dispatch(ctx, endpointID, body)
	if err != nil {
		s.reject(ctx, w, endpointID, err)
		return
	}

	header := w.Header()
	for key, values := range resp.Header {
		if http.CanonicalHeaderKey(key) == RequestIDHeader {
			continue
		}
		for _, value := range values {
			header.Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		reqLog.Warn("Failed to write response", zap.Error(err))
	}

	s.metrics.ObserveRequest(endpointID, metrics.OutcomeRelayed, time.Since(ctx.StartTime))
}

// extendWriteDeadline sets the write deadline from the current snapshot,
// so reloaded endpoint timeouts apply without a restart.
func (s *HTTPServer) extendWriteDeadline(ctx *core.RelayContext, w http.ResponseWriter) {
	if s.settings.WriteTimeout > 0 {
		return
	}
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(s.writeTimeout())); err != nil {
		ctx.Log.Debug("Write deadline not adjustable", zap.Error(err))
	}
}

func (s *HTTPServer) reject(ctx *core.RelayContext, w http.ResponseWriter, endpointID string, err error) {
	status, outcome, detail := classify(err, endpointID)
	s.fail(ctx, w, endpointID, status, outcome, detail, err)
}

func (s *HTTPServer) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := io.Reader(r.Body)
	if s.settings.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	}
	return io.ReadAll(reader)
}

func (s *HTTPServer) fail(ctx *core.RelayContext, w http.ResponseWriter, endpointID string, status int, outcome, detail string, err error) {
	fields := []zap.Field{zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		ctx.Log.Error("Request failed", fields...)
	} else {
		ctx.Log.Info("Request rejected", fields...)
	}
	writeDetail(w, status, detail)
	s.metrics.ObserveRequest(s.metricLabel(endpointID), outcome, time.Since(ctx.StartTime))
}

// metricLabel keeps ids that are not configured out of metric labels.
func (s *HTTPServer) metricLabel(endpointID string) string {
	if snapshot := s.holder.Load(); snapshot != nil {
		if _, ok := snapshot.Endpoint(endpointID); ok {
			return endpointID
		}
	}
	return "unknown"
}

// classify maps relay errors to a status code, metric outcome and the
// detail message returned to the caller.
func classify(err error, endpointID string) (int, string, string) {
	switch {
	case errors.Is(err, core.ErrNotReady):
		return http.StatusServiceUnavailable, metrics.OutcomeNotReady, "Service not ready - configuration not loaded"
	case errors.Is(err, core.ErrUnknownEndpoint):
		return http.StatusNotFound, metrics.OutcomeUnknownEndpoint, "Endpoint " + endpointID + " not found"
	case errors.Is(err, core.ErrInvalidPayload):
		return http.StatusBadRequest, metrics.OutcomeInvalidPayload, "Invalid JSON payload"
	case errors.Is(err, engine.ErrTransformation):
		return http.StatusInternalServerError, metrics.OutcomeTransformError, "Transformation error: " + cause(err, engine.ErrTransformation)
	case errors.Is(err, core.ErrNoTarget):
		return http.StatusInternalServerError, metrics.OutcomeInternalError, "Target URL not configured"
	case errors.Is(err, core.ErrForwardTimeout):
		return http.StatusGatewayTimeout, metrics.OutcomeTimeout, "Request to target service timed out"
	case errors.Is(err, core.ErrForwardFailed):
		return http.StatusBadGateway, metrics.OutcomeForwardError, "Error forwarding request: " + cause(err, core.ErrForwardFailed)
	default:
		return http.StatusInternalServerError, metrics.OutcomeInternalError, "Internal server error: " + err.Error()
	}
}

// cause strips the wrapping up to and including sentinel from err's message.
func cause(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeDetail writes a {"detail": "..."} failure body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	body, err := sjson.SetBytes([]byte(`{}`), "detail", detail)
	if err != nil {
		body = []byte(`{"detail":"Internal server error"}`)
	}
	writeJSON(w, status, body)
}
