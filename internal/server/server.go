// Package server exposes the orchestration engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ShayCichocki/oneshot/internal/metrics"
	"github.com/ShayCichocki/oneshot/internal/orchestrator"
	"github.com/ShayCichocki/oneshot/internal/state"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20
	defaultListLimit       = 50
)

// Runner executes one orchestration request. orchestrator.Engine is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// Config holds listener settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server routes HTTP requests to the engine and the stores.
type Server struct {
	cfg     Config
	runner  Runner
	traces  state.TraceReader
	docs    state.DocumentReader
	events  http.Handler
	metrics *metrics.Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithTraces enables the trace endpoints.
func WithTraces(r state.TraceReader) Option {
	return func(s *Server) { s.traces = r }
}

// WithDocuments enables the document endpoints.
func WithDocuments(r state.DocumentReader) Option {
	return func(s *Server) { s.docs = r }
}

// WithEvents mounts the websocket handler for live status events.
func WithEvents(h http.Handler) Option {
	return func(s *Server) { s.events = h }
}

// WithMetrics mounts /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server. Endpoints whose backing store was not provided
// answer 404.
func New(cfg Config, runner Runner, opts ...Option) *Server {
	s := &Server{cfg: cfg, runner: runner}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/conversations/{conversation_id}/messages", s.handlePostMessage)
	if s.traces != nil {
		s.mux.HandleFunc("GET /api/traces", s.handleListTraces)
		s.mux.HandleFunc("GET /api/traces/{id}", s.handleGetTrace)
	}
	if s.docs != nil {
		s.mux.HandleFunc("GET /api/documents", s.handleListDocuments)
		s.mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	}
	if s.events != nil {
		s.mux.Handle("GET /ws/agents/{conversation_id}", s.events)
	}
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// messageRequest is the body of POST /api/conversations/{id}/messages.
type messageRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.runner.Run(r.Context(), orchestrator.Request{
		ConversationID: r.PathValue("conversation_id"),
		Message:        body.Content,
		Metadata:       body.Metadata,
	})
	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled):
		s.writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	case err != nil:
		s.logger.Error("run failed", "conversation_id", r.PathValue("conversation_id"), "error", err)
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("I encountered an error processing your request: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(q.Get("limit"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	filter := state.TraceFilter{
		ConversationID: q.Get("conversation_id"),
		AgentName:      q.Get("agent"),
		Status:         state.TraceStatus(q.Get("status")),
		RootOnly:       q.Get("root") == "true",
		Limit:          limit,
	}

	traces, err := s.traces.ListTraces(r.Context(), filter)
	if err != nil {
		s.logger.Error("list traces failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list traces")
		return
	}
	if traces == nil {
		traces = []state.Trace{}
	}
	s.writeJSON(w, http.StatusOK, traces)
}

// traceDetail is a trace with its direct children.
type traceDetail struct {
	*state.Trace
	Children []state.Trace `json:"children"`
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tr, err := s.traces.GetTrace(r.Context(), id)
	if err != nil {
		s.logger.Error("get trace failed", "trace_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve trace")
		return
	}
	if tr == nil {
		s.writeError(w, http.StatusNotFound, "trace not found")
		return
	}

	children, err := s.traces.ListChildTraces(r.Context(), id)
	if err != nil {
		s.logger.Warn("list child traces failed", "trace_id", id, "error", err)
	}
	if children == nil {
		children = []state.Trace{}
	}
	s.writeJSON(w, http.StatusOK, traceDetail{Trace: tr, Children: children})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(q.Get("limit"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	docs, err := s.docs.ListDocuments(r.Context(), q.Get("conversation_id"), limit)
	if err != nil {
		s.logger.Error("list documents failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []state.Document{}
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.docs.GetDocument(r.Context(), id)
	if err != nil {
		s.logger.Error("get document failed", "document_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve document")
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// parseLimit accepts an empty value as the default.
func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
