package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkhalidji/callcoach/internal/data/orchestrator"
	"github.com/mkhalidji/callcoach/internal/engine"
	"github.com/mkhalidji/callcoach/internal/llm"
)

type scriptedProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(_ context.Context, _ []llm.Message) (llm.Completion, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return llm.Completion{
		Content: `{
  "score": 82,
  "strengths": ["confirmed the decision process"],
  "improvements": ["probe deeper on budget"],
  "examples": [{"speaker": "Rep", "quote": "Who else needs to sign off?", "timestamp": 12.5, "analysis": "Good process question."}],
  "action_items": ["Confirm budget ownership on the next call"]
}`,
		Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 40},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *scriptedProvider) {
	t.Helper()
	dir := t.TempDir()
	orch, err := orchestrator.New(context.Background(), orchestrator.Config{
		ArchivePath: filepath.Join(dir, "transcripts"),
		SQLitePath:  filepath.Join(dir, "coach.db"),
	})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	t.Cleanup(func() { orch.Close() })

	provider := &scriptedProvider{}
	srv, err := NewServer(context.Background(), orch, provider,
		engine.Config{CacheEnabled: true},
		engine.WithSleeper(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return srv, provider
}

func postJSON(t *testing.T, srv *Server, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func ingestCall(t *testing.T, srv *Server, callID string) {
	t.Helper()
	rr := postJSON(t, srv, "/v1/transcripts", map[string]interface{}{
		"call_id": callID,
		"rep_id":  "rep-3",
		"utterances": []map[string]interface{}{
			{"speaker": "Rep", "text": "What happens if this stays broken?", "timestamp": 1.2},
			{"speaker": "Customer", "text": "We miss our quarterly target.", "timestamp": 5.0},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("ingest transcript: status %d body %s", rr.Code, rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := get(t, srv, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rr.Code)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	ingestCall(t, srv, "call-42")

	rr := get(t, srv, "/v1/transcripts/call-42")
	if rr.Code != http.StatusOK {
		t.Fatalf("get transcript: status %d", rr.Code)
	}
	var got struct {
		CallID     string `json:"call_id"`
		Utterances []struct {
			Speaker string `json:"speaker"`
		} `json:"utterances"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if got.CallID != "call-42" || len(got.Utterances) != 2 {
		t.Fatalf("unexpected transcript %+v", got)
	}

	if rr := get(t, srv, "/v1/transcripts/unknown"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown call, got %d", rr.Code)
	}

	listRR := get(t, srv, "/v1/transcripts")
	if listRR.Code != http.StatusOK {
		t.Fatalf("list transcripts: status %d", listRR.Code)
	}
	if !strings.Contains(listRR.Body.String(), "call-42") {
		t.Fatalf("archived call missing from listing: %s", listRR.Body.String())
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ingestCall(t, srv, "call-7")

	rr := postJSON(t, srv, "/v1/analyze", analyzeRequest{CallID: "call-7", Dimensions: []string{"discovery"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze: status %d body %s", rr.Code, rr.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode analyze response: %v", err)
	}
	if resp.Status != "succeeded" {
		t.Fatalf("expected succeeded, got %s (%s)", resp.Status, resp.Error)
	}
	if resp.Results["discovery"].Score != 82 {
		t.Fatalf("unexpected score %d", resp.Results["discovery"].Score)
	}
	if resp.RunID == "" {
		t.Fatal("missing run id")
	}

	runRR := get(t, srv, "/v1/runs/"+resp.RunID)
	if runRR.Code != http.StatusOK {
		t.Fatalf("get run: status %d", runRR.Code)
	}
	listRR := get(t, srv, "/v1/runs?limit=10")
	if listRR.Code != http.StatusOK {
		t.Fatalf("list runs: status %d", listRR.Code)
	}
	if !strings.Contains(listRR.Body.String(), resp.RunID) {
		t.Fatal("run missing from listing")
	}
}

func TestAnalyzeUnknownCall(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postJSON(t, srv, "/v1/analyze", analyzeRequest{CallID: "missing"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body %s", rr.Code, rr.Body.String())
	}
}

func TestAnalyzeRequiresCallID(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postJSON(t, srv, "/v1/analyze", analyzeRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRubricPublishAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	listRR := get(t, srv, "/v1/rubrics?dimension=discovery")
	if listRR.Code != http.StatusOK {
		t.Fatalf("list rubrics: status %d", listRR.Code)
	}
	if !strings.Contains(listRR.Body.String(), `"version":"1.0"`) {
		t.Fatalf("seeded rubric missing: %s", listRR.Body.String())
	}

	rr := postJSON(t, srv, "/v1/rubrics", publishRubricRequest{
		Dimension: "discovery",
		Version:   "2.0",
		Criteria:  "Updated discovery criteria with MEDDIC emphasis.",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("publish rubric: status %d body %s", rr.Code, rr.Body.String())
	}

	var published struct {
		Version string `json:"version"`
		Active  bool   `json:"active"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &published); err != nil {
		t.Fatalf("decode published rubric: %v", err)
	}
	if published.Version != "2.0" || !published.Active {
		t.Fatalf("unexpected published rubric %+v", published)
	}

	if rr := postJSON(t, srv, "/v1/rubrics", publishRubricRequest{Dimension: "discovery"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing version, got %d", rr.Code)
	}
}

func TestRoutingStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ingestCall(t, srv, "call-9")
	for i := 0; i < 2; i++ {
		rr := postJSON(t, srv, "/v1/analyze", analyzeRequest{CallID: "call-9", Dimensions: []string{"discovery"}})
		if rr.Code != http.StatusOK {
			t.Fatalf("analyze %d: status %d", i, rr.Code)
		}
	}
	rr := get(t, srv, "/v1/routing/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("routing stats: status %d", rr.Code)
	}
	var resp struct {
		Variants []struct {
			Variant string `json:"variant"`
			Runs    int    `json:"runs"`
		} `json:"variants"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	var legacyRuns int
	for _, v := range resp.Variants {
		if v.Variant == "legacy" {
			legacyRuns = v.Runs
		}
	}
	if legacyRuns != 2 {
		t.Fatalf("expected 2 legacy runs, got %d (%s)", legacyRuns, rr.Body.String())
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := get(t, srv, "/v1/logs")
	if rr.Code != http.StatusOK {
		t.Fatalf("logs: status %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
}
