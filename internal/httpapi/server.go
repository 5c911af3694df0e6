// Package httpapi exposes the annotation service over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dusk-indust/pyannotate/internal/analyzer"
	"github.com/dusk-indust/pyannotate/internal/annotate"
)

// OwnerHeader carries the caller's identity. Authentication happens in front
// of this server.
const OwnerHeader = "X-Owner-ID"

// Server routes /api/v1 requests to an annotate.Service.
type Server struct {
	svc      *annotate.Service
	analyzer *analyzer.Analyzer
	validate *validator.Validate
	logger   *slog.Logger
	maxBody  int64
	http     *http.Server
	listener net.Listener
}

// NewServer creates a server. maxBody bounds request bodies; zero means
// annotate.DefaultMaxUploadBytes plus room for the JSON envelope.
func NewServer(svc *annotate.Service, an *analyzer.Analyzer, maxBody int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBody <= 0 {
		maxBody = annotate.DefaultMaxUploadBytes
	}
	return &Server{
		svc:      svc,
		analyzer: an,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		// JSON escaping can double the size of a source file.
		maxBody: 2*maxBody + 4096,
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/parse", s.handleParse)
	mux.HandleFunc("POST /api/v1/files", s.handleUpload)
	mux.HandleFunc("GET /api/v1/files", s.handleListFiles)
	mux.HandleFunc("GET /api/v1/files/{id}", s.handleGetFile)
	mux.HandleFunc("DELETE /api/v1/files/{id}", s.handleDeleteFile)
	mux.HandleFunc("GET /api/v1/files/{id}/map", s.handleParsedMap)
	mux.HandleFunc("GET /api/v1/files/{id}/diagram", s.handleDiagram)
	mux.HandleFunc("GET /api/v1/files/{id}/functions/{name}/chains", s.handleChains)
	mux.HandleFunc("POST /api/v1/files/{id}/annotations", s.handleAnnotate)
	mux.HandleFunc("GET /api/v1/files/{id}/annotations", s.handleListAnnotations)
	mux.HandleFunc("GET /api/v1/files/{id}/annotations/{annotationID}", s.handleGetAnnotation)

	return s.logRequests(mux)
}

// Start binds addr and serves in a background goroutine. The bound address
// is available from Addr once Start returns.
func (s *Server) Start(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr reports the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
