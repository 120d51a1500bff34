// Package server exposes the paper backend over HTTP: structure and paper
// CRUD, section generation, export, and the literature analysis pipeline.
// Responses use a flat status/message envelope on errors so clients can
// surface backend messages directly.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paperdesk/paperdesk/analysis"
	"github.com/paperdesk/paperdesk/config"
	"github.com/paperdesk/paperdesk/llm"
	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

// maxRequestBodySize limits POST body sizes to prevent DoS. Generation
// requests carry the whole document, so the cap is generous.
const maxRequestBodySize = 8 << 20 // 8 MB

// PaperStore is the persistence surface the server depends on.
// *store.Store implements it.
type PaperStore interface {
	List() ([]paper.Info, error)
	Create() (*paper.Info, error)
	Load(id string) (*paper.Document, error)
	Save(doc *paper.Document) error
	Rename(id, name string) error
	Delete(id string) error
}

// Server handles the backend API.
type Server struct {
	graph     *section.Graph
	store     PaperStore
	analysis  *analysis.Service
	completer llm.Completer
	model     config.ModelConfig
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAnalysis enables the literature analysis endpoints.
func WithAnalysis(svc *analysis.Service) Option {
	return func(s *Server) {
		s.analysis = svc
	}
}

// NewServer creates a server. The model config supplies provider defaults
// for requests that do not name a model themselves.
func NewServer(g *section.Graph, store PaperStore, completer llm.Completer, model config.ModelConfig, opts ...Option) *Server {
	s := &Server{
		graph:     g,
		store:     store,
		completer: completer,
		model:     model,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the instrumented HTTP handler for the full API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/structure", s.handleStructure)
	mux.HandleFunc("GET /api/papers", s.handleListPapers)
	mux.HandleFunc("POST /api/papers/new", s.handleCreatePaper)
	mux.HandleFunc("GET /api/paper/{id}", s.handleLoadPaper)
	mux.HandleFunc("POST /api/paper/{id}", s.handleSavePaper)
	mux.HandleFunc("DELETE /api/paper/{id}", s.handleDeletePaper)
	mux.HandleFunc("POST /api/paper/rename/{id}", s.handleRenamePaper)
	mux.HandleFunc("GET /api/paper/export/{id}", s.handleExportPaper)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)

	if s.analysis != nil {
		mux.HandleFunc("GET /api/analysis/papers", s.handlePaperStatuses)
		mux.HandleFunc("POST /api/analysis/process", s.handleProcessPaper)
		mux.HandleFunc("GET /api/analysis/analyzed", s.handleAnalyzedPapers)
		mux.HandleFunc("GET /api/analysis/report", s.handleGetReport)
		mux.HandleFunc("POST /api/analysis/report", s.handleGenerateReport)
		mux.HandleFunc("GET /api/analysis/brainstorm", s.handleGetBrainstorm)
		mux.HandleFunc("POST /api/analysis/brainstorm", s.handleBrainstorm)
	}

	mux.Handle("GET /metrics", promhttp.Handler())

	return withMetrics(mux)
}
