package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/HendryAvila/compass/internal/auth"
	"github.com/HendryAvila/compass/internal/dispatch"
	"github.com/HendryAvila/compass/internal/metrics"
)

// ToolCaller runs tool calls for the REST view. *dispatch.Dispatcher
// implements it.
type ToolCaller interface {
	Call(ctx context.Context, tool string, args map[string]any, ident auth.Identity) (*dispatch.Result, error)
}

// HTTPOptions configures the HTTP surface.
type HTTPOptions struct {
	Sessions SessionOptions
	// AllowedOrigins for CORS on the REST routes. Empty allows any origin.
	AllowedOrigins []string
}

// HTTP is the multi-user HTTP surface: the session transport, the REST
// tool view, health and metrics.
type HTTP struct {
	sessions *Sessions
	calls    ToolCaller
	resolver auth.Resolver
	opts     HTTPOptions
	log      *zap.Logger
	metrics  *metrics.Collector
}

// NewHTTP creates the HTTP surface. log and m may be nil.
func NewHTTP(handler MessageHandler, calls ToolCaller, resolver auth.Resolver, opts HTTPOptions, log *zap.Logger, m *metrics.Collector) *HTTP {
	if log == nil {
		log = zap.NewNop()
	}
	opts.Sessions = opts.Sessions.withDefaults()
	return &HTTP{
		sessions: NewSessions(handler, resolver, opts.Sessions, log, m),
		calls:    calls,
		resolver: resolver,
		opts:     opts,
		log:      log,
		metrics:  m,
	}
}

// Sessions returns the session transport.
func (h *HTTP) Sessions() *Sessions {
	return h.sessions
}

// Router builds the chi router with every route mounted.
func (h *HTTP) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(accessLog(h.log))

	router.Get("/health", h.health)
	router.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	router.Get("/sse", h.sessions.HandleStream)
	router.Post("/messages", h.sessions.HandleMessage)

	origins := h.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Passphrase", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
		r.Use(h.authenticate)
		r.Get("/graph", h.getGraph)
		r.Post("/tools/{name}", h.callTool)
	})

	return router
}

// Shutdown closes every open session so their streams end.
func (h *HTTP) Shutdown() {
	h.sessions.Registry().CloseAll()
}

func (h *HTTP) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate resolves the caller for REST routes. Unlike the stream, a
// REST request that fails resolution is rejected outright.
func (h *HTTP) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _, err := identify(r.Context(), h.resolver, credentials(r))
		if err != nil {
			writeError(w, dispatch.Classify(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *HTTP) getGraph(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, dispatch.ToolGetGraph, nil)
}

func (h *HTTP) callTool(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, h.opts.Sessions.MaxBodyBytes)
	if !ok {
		return
	}
	args := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeError(w, dispatch.ErrorInfo{
				Code:    dispatch.CodeInvalidArguments,
				Message: "request body must be a JSON object",
				Status:  http.StatusBadRequest,
			})
			return
		}
	}
	h.run(w, r, chi.URLParam(r, "name"), args)
}

func (h *HTTP) run(w http.ResponseWriter, r *http.Request, tool string, args map[string]any) {
	ident, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, dispatch.Classify(err))
		return
	}
	status, body := dispatch.HTTPResponse(h.calls.Call(r.Context(), tool, args, ident))
	writeJSON(w, status, body)
}

// accessLog logs one line per request once it completes.
func accessLog(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
