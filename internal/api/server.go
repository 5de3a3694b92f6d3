// Package api exposes the coaching engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/data/orchestrator"
	"github.com/mkhalidji/callcoach/internal/engine"
	"github.com/mkhalidji/callcoach/internal/llm"
	"github.com/mkhalidji/callcoach/internal/rubric"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

type Server struct {
	router   chi.Router
	catalog  catalog.Store
	archive  *transcript.Archive
	resolver *rubric.Resolver
	engine   *engine.Engine

	orchestrator *orchestrator.Orchestrator
}

func NewServer(ctx context.Context, orch *orchestrator.Orchestrator, provider llm.Provider, cfg engine.Config, opts ...engine.Option) (*Server, error) {
	logger := common.Logger()
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	store := orch.Catalog()
	if store == nil {
		return nil, fmt.Errorf("catalog store unavailable")
	}
	archive := orch.Archive()
	if archive == nil {
		return nil, fmt.Errorf("transcript archive unavailable")
	}
	providerName := "unknown"
	if provider != nil {
		providerName = provider.Name()
	}
	logger.Info("api: building server",
		"provider", providerName,
		"rollout_percent", cfg.RolloutPercent,
		"cache_enabled", cfg.CacheEnabled)

	srv := &Server{
		router:       chi.NewRouter(),
		catalog:      store,
		archive:      archive,
		resolver:     rubric.NewResolver(store),
		engine:       engine.New(store, provider, cfg, opts...),
		orchestrator: orch,
	}
	srv.routes()
	logger.Info("api: server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/analyze", s.handleAnalyze)
	s.router.Get("/v1/runs", s.handleRuns)
	s.router.Get("/v1/runs/{runID}", s.handleRun)
	s.router.Get("/v1/rubrics", s.handleRubrics)
	s.router.Post("/v1/rubrics", s.handlePublishRubric)
	s.router.Post("/v1/transcripts", s.handleIngestTranscript)
	s.router.Get("/v1/transcripts", s.handleTranscripts)
	s.router.Get("/v1/transcripts/{callID}", s.handleTranscript)
	s.router.Get("/v1/routing/stats", s.handleRoutingStats)
	s.router.Get("/v1/routing/decisions", s.handleRoutingDecisions)
	s.router.Get("/v1/logs", s.handleLogs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, common.LogEntries())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
