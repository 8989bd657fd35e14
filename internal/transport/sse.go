package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/dispatch"
	"github.com/HendryAvila/compass/internal/metrics"
)

// Default session settings.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultMaxBodyBytes = 1 << 20
)

// Transport-level error codes. Tool-level codes live in dispatch.
const (
	CodeUnknownSession  = "unknown_session"
	CodeRequestTooLarge = "request_too_large"
	CodeBadRequest      = "bad_request"
)

// SessionOptions configures the session transport.
type SessionOptions struct {
	// BaseURL prefixes the messages endpoint announced to clients.
	BaseURL      string
	PingInterval time.Duration
	MaxBodyBytes int64
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

// Sessions serves the SSE stream and message endpoints.
type Sessions struct {
	handler  MessageHandler
	resolver auth.Resolver
	registry *Registry
	opts     SessionOptions
	log      *zap.Logger
	metrics  *metrics.Collector
}

// NewSessions creates the session transport. log and m may be nil.
func NewSessions(handler MessageHandler, resolver auth.Resolver, opts SessionOptions, log *zap.Logger, m *metrics.Collector) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		handler:  handler,
		resolver: resolver,
		registry: NewRegistry(),
		opts:     opts.withDefaults(),
		log:      log,
		metrics:  m,
	}
}

// Registry returns the open sessions.
func (s *Sessions) Registry() *Registry {
	return s.registry
}

// HandleStream serves GET /sse. The caller is authenticated before the
// stream opens; the stream then lives until the client goes away or the
// session is closed.
func (s *Sessions) HandleStream(w http.ResponseWriter, r *http.Request) {
	_, ident, err := identify(r.Context(), s.resolver, credentials(r))
	if err != nil {
		s.log.Debug("stream rejected", zap.Error(err))
		writeError(w, dispatch.Classify(err))
		return
	}

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sess := s.registry.Open(ident)
	s.metrics.SessionOpened()
	ticker := time.NewTicker(s.opts.PingInterval)
	log := s.log.With(zap.String("session_id", sess.ID), zap.String("user_id", ident.UserID))
	log.Info("session opened")
	defer func() {
		ticker.Stop()
		s.registry.Close(sess.ID)
		s.metrics.SessionClosed()
		log.Info("session closed")
	}()

	send := func(format string, args ...any) bool {
		if _, err := fmt.Fprintf(w, format, args...); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send("event: endpoint\ndata: %s/messages?session_id=%s\n\n", s.opts.BaseURL, sess.ID) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			return
		case frame := <-sess.frames:
			if !send("event: message\ndata: %s\n\n", frame) {
				return
			}
		case <-ticker.C:
			if !send(": ping\n\n") {
				return
			}
		}
	}
}

// HandleMessage serves POST /messages?session_id=... with the identity the
// session captured when it opened. The reply is both the response body and
// an event on the session's stream.
func (s *Sessions) HandleMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.Get(r.URL.Query().Get("session_id"))
	if !ok {
		writeError(w, dispatch.ErrorInfo{
			Code:    CodeUnknownSession,
			Message: "unknown or expired session id",
			Status:  http.StatusBadRequest,
		})
		return
	}

	body, ok := readBody(w, r, s.opts.MaxBodyBytes)
	if !ok {
		return
	}

	ctx := auth.WithIdentity(r.Context(), sess.Identity)
	reply := s.handler.HandleMessage(ctx, json.RawMessage(body))
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.log.Error("encode reply", zap.Error(err))
		writeError(w, dispatch.Classify(err))
		return
	}
	if !sess.Send(data) {
		s.log.Warn("reply not queued on stream", zap.String("session_id", sess.ID))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// credentials reads the API key and passphrase from headers, falling back
// to query parameters.
func credentials(r *http.Request) auth.Credentials {
	return auth.Credentials{
		APIKey:     headerOrQuery(r, "X-API-Key", "api_key"),
		Passphrase: headerOrQuery(r, "X-Passphrase", "passphrase"),
	}
}

func headerOrQuery(r *http.Request, header, param string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	return r.URL.Query().Get(param)
}

// readBody reads at most limit bytes of the request body. It writes the
// error response itself and reports false on failure.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, dispatch.ErrorInfo{
				Code:    CodeRequestTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", limit),
				Status:  http.StatusRequestEntityTooLarge,
			})
			return nil, false
		}
		writeError(w, dispatch.ErrorInfo{Code: CodeBadRequest, Message: "could not read request body", Status: http.StatusBadRequest})
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, info dispatch.ErrorInfo) {
	writeJSON(w, info.Status, dispatch.Response{Error: &info})
}
