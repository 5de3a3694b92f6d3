package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/engine"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: analyze decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.CallID = strings.TrimSpace(req.CallID)
	if req.CallID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("call_id is required"))
		return
	}
	logger.Info("api: analyze requested",
		"call_id", req.CallID, "dimensions", len(req.Dimensions), "force", req.Force)

	result, err := s.engine.Analyze(r.Context(), engine.Request{
		CallID:     req.CallID,
		Dimensions: req.Dimensions,
		Force:      req.Force,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		RunID:            result.RunID,
		CallID:           result.CallID,
		Variant:          string(result.Variant),
		Status:           result.Status,
		Error:            result.Error,
		Results:          result.Results,
		Failures:         result.Failures,
		Consolidated:     result.Consolidated,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	})
}
