// Package web composes the streaming reader and tailer into the HTTP
// boundary: bulk JSON, plain-text, SSE live-stream, and streaming-HTML
// endpoints, all gated by a shared-secret query parameter.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loglens/loglens/internal/store"
)

// Config bundles the process-wide inputs the HTTP boundary needs beyond
// the store components it is handed directly.
type Config struct {
	LogPath string
	Secret  string
	Version string
}

// Server holds everything a request handler needs: the log path (reopened
// per request, never kept open across requests), the shared reader/tailer,
// and a cached HTML shell.
type Server struct {
	cfg    Config
	secret string
	reader *store.StreamReader
	tailer *store.Tailer
	logger *slog.Logger

	shell shellParts

	ready atomicBool
}

// NewServer wires a Server around a shared stream reader (and its offset
// cache) and a tailer; it does not start the tailer's Run loop. Call Router
// to obtain the http.Handler to serve.
func NewServer(cfg Config, reader *store.StreamReader, tailer *store.Tailer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		secret: cfg.Secret,
		reader: reader,
		tailer: tailer,
		logger: logger,
		shell:  buildShell(),
	}
	return s
}

// MarkReady flips the healthz endpoint to report healthy. Call once the
// tailer has completed its first watch registration.
func (s *Server) MarkReady() {
	s.ready.set(true)
}

// Router builds the chi mux: request logging and panic recovery apply to
// every route, but no blanket timeout wraps the SSE/HTML endpoints since
// those are intentionally long-lived.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/api/logs", s.requireAuth(s.handleBulk))
	r.Get("/api/logs/raw", s.requireAuth(s.handleRaw))
	r.Get("/api/logs/stream", s.requireAuth(s.handleStream))
	r.Get("/healthz", s.handleHealthz)
	r.Get("/version", s.handleVersion)

	return r
}

// requestLogger logs each request's method, path, status, and duration via
// the package-level slog logger, in place of chi's default stdlib logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.ready.get() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.cfg.Version))
}

