package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/inspection-extractor/internal/export"
	"github.com/joseph-ayodele/inspection-extractor/internal/pipeline"
)

type Config struct {
	MaxUploadBytes int64
	SheetName      string
}

// Server is the HTTP API for uploads and stored runs.
type Server struct {
	router   chi.Router
	proc     *pipeline.Processor
	exporter *export.Service
	log      *slog.Logger
	cfg      Config
}

func NewServer(proc *pipeline.Processor, exporter *export.Service, log *slog.Logger, cfg Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	s := &Server{proc: proc, exporter: exporter, log: log, cfg: cfg}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/extract/text", s.handleExtractText)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/xlsx", s.handleRunXLSX)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
