package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"driftwatch/internal/models"
	"driftwatch/internal/store"
)

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []models.Chunk `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = 8
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))

	if err := s.ensureIndexed(); err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	results := s.index.Search(req.Query, req.TopK)
	if results == nil {
		results = []models.Chunk{}
	}
	s.respondJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunk, err := s.store.Chunk(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "chunk not found")
			return
		}
		s.logger.Error("chunk lookup failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, chunk)
}

type driftRequest struct {
	Pairs    []models.PairUnit `json:"pairs"`
	UseJudge bool              `json:"use_judge"`
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.respondError(w, http.StatusNotImplemented, "drift evaluation not enabled")
		return
	}
	var req driftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Pairs) == 0 {
		s.respondError(w, http.StatusBadRequest, "pairs are required")
		return
	}
	s.logger.Debug("drift request", zap.Int("pairs", len(req.Pairs)), zap.Bool("use_judge", req.UseJudge))

	report, err := s.engine.EvaluatePairs(r.Context(), req.Pairs, req.UseJudge)
	if err != nil {
		s.logger.Error("drift evaluation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report.Flags == nil {
		report.Flags = []models.DriftFlag{}
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	fileIDs, err := s.store.FileIDs()
	if err != nil {
		s.logger.Error("status: list corpus failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":         len(fileIDs),
		"indexed_documents": s.index.DocumentCount(),
		"indexed_chunks":    s.index.ChunkCount(),
		"indexed_terms":     s.index.TermCount(),
	})
}

// ensureIndexed brings every corpus document into the index before serving a
// search. Individual failures are logged and skipped.
func (s *Server) ensureIndexed() error {
	fileIDs, err := s.store.FileIDs()
	if err != nil {
		return err
	}
	for _, fid := range fileIDs {
		if err := s.index.IndexDocument(fid); err != nil {
			s.logger.Warn("failed to index document", zap.String("file_id", fid), zap.Error(err))
		}
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
