package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

func (s *Server) handleIngestTranscript(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req ingestTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: transcript decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t := transcript.Transcript{
		CallID:     strings.TrimSpace(req.CallID),
		RepID:      strings.TrimSpace(req.RepID),
		Utterances: req.Utterances,
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.archive.Append(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("archive transcript: %w", err))
		return
	}
	if err := s.catalog.SaveTranscript(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("save transcript: %w", err))
		return
	}
	logger.Info("api: transcript ingested",
		"call_id", t.CallID, "utterances", len(t.Utterances))
	writeJSON(w, http.StatusOK, ingestTranscriptResponse{
		CallID:      t.CallID,
		ContentHash: t.ContentHash(),
		Utterances:  len(t.Utterances),
	})
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	callIDs, err := s.archive.CallIDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"call_ids": callIDs})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "callID"))
	if callID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("call id required"))
		return
	}
	t, err := s.catalog.GetTranscript(r.Context(), callID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("transcript %s not found", callID))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
