package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
)

func (s *Server) handleRubrics(w http.ResponseWriter, r *http.Request) {
	dimension := strings.TrimSpace(r.URL.Query().Get("dimension"))
	rubrics, err := s.catalog.ListRubrics(r.Context(), dimension)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rubrics": rubrics})
}

func (s *Server) handlePublishRubric(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req publishRubricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: rubric decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Dimension = strings.TrimSpace(req.Dimension)
	req.Version = strings.TrimSpace(req.Version)
	if req.Dimension == "" || req.Version == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dimension and version are required"))
		return
	}
	if strings.TrimSpace(req.Criteria) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("criteria is required"))
		return
	}
	published, err := s.resolver.Publish(r.Context(), catalog.Rubric{
		Dimension:    req.Dimension,
		Version:      req.Version,
		Criteria:     req.Criteria,
		ScoringGuide: req.ScoringGuide,
		Examples:     req.Examples,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	logger.Info("api: rubric published", "dimension", published.Dimension, "version", published.Version)
	writeJSON(w, http.StatusCreated, published)
}
