package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sonicweb/internal/domain"
	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
	logpkg "github.com/kailas-cloud/sonicweb/internal/logger"
	controluc "github.com/kailas-cloud/sonicweb/internal/usecase/control"
	healthuc "github.com/kailas-cloud/sonicweb/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/sonicweb/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/sonicweb/internal/usecase/search"
	"github.com/kailas-cloud/sonicweb/internal/version"
)

// maxBodyBytes bounds POST bodies; the document limit plus JSON overhead.
const maxBodyBytes = 2 * domdoc.MaxDetailsSize

const staticPrefix = "/static/"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the search page and the JSON API.
type Server struct {
	ingest        *ingestuc.Service
	search        *searchuc.Service
	control       *controluc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	page          pageData
	errorHandlers []errorHandler
}

// NewServer creates an HTTP server.
func NewServer(
	ingest *ingestuc.Service,
	search *searchuc.Service,
	control *controluc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:  ingest,
		search:  search,
		control: control,
		health:  health,
		logger:  logger,
		page: pageData{
			Title:      "Sonic Search",
			StaticBase: "/static",
			Version:    version.Version,
		},
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrStore, http.StatusUnprocessableEntity, ErrorCodeDatabaseError),
	}
	return s
}

// WithPage sets the page title and the base URL the page script calls.
func (s *Server) WithPage(title, apiBase string) *Server {
	if title != "" {
		s.page.Title = title
	}
	s.page.APIBase = apiBase
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.Index)
	r.Handle("/static/*", http.StripPrefix(staticPrefix, http.FileServer(http.FS(staticFS()))))

	r.Get("/search", s.Search)
	r.Get("/search/{query}", s.Search)
	r.Get("/suggest/{word}", s.Suggest)
	r.Post("/ingest", s.Ingest)
	r.Post("/consolidate", s.Consolidate)
	r.Post("/reindex", s.Reindex)
	r.Get("/stats", s.Stats)

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, s.page); err != nil {
		s.handleDomainError(w, r, fmt.Errorf("%w: %w", domain.ErrRender, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// Search handles GET /search/{query}.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query, err := pathParam(r, "query")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	docs, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]ValueItem, len(docs))
	for i, d := range docs {
		items[i] = ValueItem{Value: d.Details()}
	}
	writeJSON(w, http.StatusOK, items)
}

// Suggest handles GET /suggest/{word}.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	word, err := pathParam(r, "word")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	words, err := s.search.Suggest(r.Context(), word)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]ValueItem, len(words))
	for i, v := range words {
		items[i] = ValueItem{Value: v}
	}
	writeJSON(w, http.StatusOK, items)
}

// Ingest handles POST /ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if req.Text == nil {
		s.handleDomainError(w, r, fmt.Errorf("%w: missing field \"text\"", domain.ErrInvalidInput))
		return
	}

	if _, err := s.ingest.Ingest(r.Context(), *req.Text); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IngestResponse{Status: true})
}

// Consolidate handles POST /consolidate.
func (s *Server) Consolidate(w http.ResponseWriter, r *http.Request) {
	if err := s.control.Consolidate(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConsolidateResponse{Consolidated: true})
}

// Reindex handles POST /reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	res, err := s.ingest.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Pushed: res.Pushed, Failed: res.Failed})
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := s.ingest.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Documents: n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// pathParam returns a decoded chi URL parameter. chi matches on the raw path
// when the request carries escapes, leaving the parameter encoded.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return decoded, nil
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, err.Error())
}
