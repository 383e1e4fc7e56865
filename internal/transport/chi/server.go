// Package chi wires the legacy query API onto a chi router. The three
// query endpoints keep their historical envelope keys (results /
// documents / images) for caller compatibility.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clipdex/internal/domain"
	logpkg "github.com/kailas-cloud/clipdex/internal/logger"
	healthuc "github.com/kailas-cloud/clipdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/clipdex/internal/usecase/query"
)

// statsReader reads index stats for the debug endpoint.
type statsReader interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// Server exposes the query API handlers.
type Server struct {
	query     *queryuc.Service
	health    *healthuc.Service
	stats     statsReader
	indexName string
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	query *queryuc.Service,
	health *healthuc.Service,
	stats statsReader,
	indexName string,
	logger *zap.Logger,
) *Server {
	return &Server{
		query:     query,
		health:    health,
		stats:     stats,
		indexName: indexName,
		logger:    logger,
	}
}

// Routes mounts all endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query-pinecone", s.handleQuery)
	r.Post("/query-documents", s.handleQueryDocuments)
	r.Post("/query-images", s.handleQueryImages)
	r.Get("/health", s.handleHealth)
	r.Get("/debug-index", s.handleDebugIndex)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type queryRequest struct {
	Query       string `json:"query"`
	TopK        int    `json:"topK"`
	ContentType string `json:"contentType"`
}

// handleQuery handles POST /query-pinecone.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	contentType := domain.ContentType(req.ContentType)
	if contentType == "" {
		contentType = domain.ContentAll
	}

	results, err := s.query.Search(r.Context(), req.Query, req.TopK, contentType)
	if err != nil {
		s.handleQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleQueryDocuments handles POST /query-documents.
func (s *Server) handleQueryDocuments(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	docs, err := s.query.SearchDocuments(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.handleQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleQueryImages handles POST /query-images.
func (s *Server) handleQueryImages(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	images, err := s.query.SearchImages(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.handleQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

// handleHealth handles GET /health. Backend failures come back as a
// status/message body, never as an unhandled error.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusInternalServerError
		writeJSON(w, status, map[string]any{
			"status":  report.Status,
			"message": report.Message,
		})
		return
	}

	writeJSON(w, status, map[string]any{
		"status":       report.Status,
		"message":      report.Message,
		"index_name":   report.IndexName,
		"vector_count": report.VectorCount,
	})
}

// handleDebugIndex handles GET /debug-index.
func (s *Server) handleDebugIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		logpkg.FromContext(r.Context()).Error("index debug failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"index_name": s.indexName,
		"stats": map[string]any{
			"total_vector_count": stats.TotalVectorCount,
			"dimension":          stats.Dimension,
		},
	})
}

// decodeQuery parses the shared request body. A missing or empty query is
// rejected here so all three endpoints agree on the 400 shape.
func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return queryRequest{}, false
	}
	if req.Query == "" {
		logpkg.FromContext(r.Context()).Error("no query provided")
		writeError(w, http.StatusBadRequest, "No query provided")
		return queryRequest{}, false
	}
	return req, true
}

// handleQueryError maps service errors to responses. Full detail goes to
// the log; the caller gets a generic message.
func (s *Server) handleQueryError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())

	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		logger.Error("no query provided")
		writeError(w, http.StatusBadRequest, "No query provided")
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		logger.Error("query embedding failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to embed query")
	default:
		logger.Error("query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error processing query")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
