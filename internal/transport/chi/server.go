package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docsearch/internal/adapter/pdf"
	"docsearch/internal/app"
	"docsearch/internal/domain"
	"docsearch/internal/logger"
	"docsearch/internal/metrics"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeBadRequest        = "bad_request"
	codeInvalidInput      = "invalid_input"
	codeCorpusNotSelected = "corpus_not_selected"
	codeCorpusSelected    = "corpus_already_selected"
	codeNotFound          = "not_found"
	codeUpstream          = "upstream_error"
	codeInconsistent      = "inconsistent_state"
	codePDFTool           = "pdf_tool_missing"
	codeInternal          = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server exposes the corpus of a Session over HTTP.
type Server struct {
	session       *app.Session
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(session *app.Session, log *zap.Logger) *Server {
	s := &Server{
		session: session,
		logger:  logger.OrNop(log),
	}
	s.errorHandlers = []errorHandler{
		pdfToolHandler,
		sentinelHandler(app.ErrCorpusAlreadySelected, http.StatusConflict, codeCorpusSelected),
		sentinelHandler(domain.ErrCorpusNotSelected, http.StatusBadRequest, codeCorpusNotSelected),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, codeUpstream),
		sentinelHandler(domain.ErrInconsistentState, http.StatusConflict, codeInconsistent),
	}
	return s
}

// Router builds the chi router with middleware and every route.
func (s *Server) Router() http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/corpus", s.SelectCorpus)
	r.Get("/embed", s.Embed)
	r.Get("/search", s.Search)
	r.Get("/audit", s.Audit)

	r.Route("/documents", func(r gochi.Router) {
		r.Get("/", s.ListDocuments)
		r.Delete("/{name}", s.DeleteDocument)
		r.Post("/{name}/ingest", s.IngestDocument)
		r.Get("/{name}/metadata", s.GetMetadata)
		r.Post("/{name}/metadata", s.CreateMetadata)
		r.Put("/{name}/metadata", s.UpdateMetadata)
	})
	return r
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"corpus": s.session.Root(),
	})
}

type selectCorpusRequest struct {
	Root string `json:"root"`
}

// SelectCorpus handles POST /corpus.
func (s *Server) SelectCorpus(w http.ResponseWriter, r *http.Request) {
	var req selectCorpusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := s.session.Select(req.Root)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"root": a.Corpus.Root()})
}

// Embed handles GET /embed?q=.
func (s *Server) Embed(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}

	vec, err := a.Retrieve.EmbedQuery(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][][]float32{"result": {vec}})
}

// Search handles GET /search?q=&k=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}

	hits, err := a.Search.Search(r.Context(), r.URL.Query().Get("q"), k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if hits == nil {
		hits = []domain.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Hit{"similar_sentences": hits})
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}

	infos, err := a.Manager.Documents()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.DocumentInfo{"documents": infos})
}

type ingestRequest struct {
	Path string `json:"path"`
	// WithMetadata also stores the metadata read from the file.
	WithMetadata bool `json:"with_metadata"`
}

type ingestResponse struct {
	Name      string           `json:"name"`
	Model     string           `json:"model"`
	Pages     int              `json:"pages"`
	Sentences int              `json:"sentences"`
	Metadata  *domain.Metadata `json:"metadata,omitempty"`
}

// IngestDocument handles POST /documents/{name}/ingest.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "path is required")
		return
	}

	var (
		doc  domain.Document
		meta *domain.Metadata
		err  error
	)
	if req.WithMetadata {
		var m domain.Metadata
		doc, m, err = a.Manager.Import(r.Context(), req.Path, name)
		meta = &m
	} else {
		doc, err = a.Manager.IngestFile(r.Context(), req.Path, name)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Name:      doc.Name,
		Model:     doc.Model,
		Pages:     len(doc.Pages),
		Sentences: doc.SentenceCount(),
		Metadata:  meta,
	})
}

// GetMetadata handles GET /documents/{name}/metadata.
func (s *Server) GetMetadata(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	meta, err := a.Manager.GetMetadata(name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type createMetadataRequest struct {
	Path string `json:"path"`
}

// CreateMetadata handles POST /documents/{name}/metadata.
func (s *Server) CreateMetadata(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	var req createMetadataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "path is required")
		return
	}

	meta, err := a.Manager.CreateMetadataFromFile(r.Context(), req.Path, name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// UpdateMetadata handles PUT /documents/{name}/metadata.
func (s *Server) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	var meta domain.Metadata
	if !decodeBody(w, r, &meta) {
		return
	}

	if err := a.Manager.UpdateMetadata(name, meta); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// DeleteDocument handles DELETE /documents/{name}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	if err := a.Manager.Delete(name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Audit handles GET /audit.
func (s *Server) Audit(w http.ResponseWriter, r *http.Request) {
	a, ok := s.current(w, r)
	if !ok {
		return
	}

	found, err := a.Manager.Audit()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if found == nil {
		found = []domain.Inconsistency{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consistent":      len(found) == 0,
		"inconsistencies": found,
	})
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) (*app.App, bool) {
	a, err := s.session.Current()
	if err != nil {
		s.handleDomainError(w, r, err)
		return nil, false
	}
	return a, true
}

func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(gochi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid document name")
		return "", false
	}
	return name, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// pdfToolHandler reports missing poppler binaries with install instructions.
func pdfToolHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, pdf.ErrPDFToolNotFound) {
		return false
	}
	writeError(w, http.StatusServiceUnavailable, codePDFTool, err.Error()+"\n"+pdf.InstallInstructions())
	return true
}

// handleDomainError logs through the request logger so entries carry the
// request ID.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
