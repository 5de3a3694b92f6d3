package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/llm"
	"github.com/mkhalidji/callcoach/internal/llm/providers"
	"github.com/mkhalidji/callcoach/internal/pipeline"
	"github.com/mkhalidji/callcoach/internal/rubric"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

// memStore is an in-memory catalog.Store for engine tests.
type memStore struct {
	mu          sync.Mutex
	rubrics     []catalog.Rubric
	evaluations map[string]catalog.CachedEvaluation
	runs        map[string]*catalog.AnalysisRun
	dimensions  map[string]map[string]catalog.RunDimension
	routing     []catalog.RoutingDecision
	transcripts map[string]transcript.Transcript
}

func newMemStore() *memStore {
	return &memStore{
		evaluations: make(map[string]catalog.CachedEvaluation),
		runs:        make(map[string]*catalog.AnalysisRun),
		dimensions:  make(map[string]map[string]catalog.RunDimension),
		transcripts: make(map[string]transcript.Transcript),
	}
}

func (s *memStore) ActiveRubric(_ context.Context, dimension string) (*catalog.Rubric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rubrics {
		if s.rubrics[i].Dimension == dimension && s.rubrics[i].Active {
			r := s.rubrics[i]
			return &r, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (s *memStore) PublishRubric(_ context.Context, r catalog.Rubric) (*catalog.Rubric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rubrics {
		if s.rubrics[i].Dimension == r.Dimension {
			s.rubrics[i].Active = false
		}
	}
	r.Active = true
	r.CreatedAt = time.Now().UTC()
	s.rubrics = append(s.rubrics, r)
	return &r, nil
}

func (s *memStore) ListRubrics(_ context.Context, dimension string) ([]catalog.Rubric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Rubric
	for _, r := range s.rubrics {
		if dimension == "" || r.Dimension == dimension {
			out = append(out, r)
		}
	}
	return out, nil
}

func cacheKey(hash, dimension, version string) string {
	return hash + "|" + dimension + "|" + version
}

func (s *memStore) LookupEvaluation(_ context.Context, hash, dimension, version string) (*catalog.CachedEvaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.evaluations[cacheKey(hash, dimension, version)]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (s *memStore) StoreEvaluation(_ context.Context, entry catalog.CachedEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cacheKey(entry.TranscriptHash, entry.Dimension, entry.RubricVersion)
	if _, ok := s.evaluations[key]; !ok {
		s.evaluations[key] = entry
	}
	return nil
}

func (s *memStore) CreateRun(_ context.Context, run catalog.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := run
	s.runs[run.RunID] = &copied
	s.dimensions[run.RunID] = make(map[string]catalog.RunDimension)
	return nil
}

func (s *memStore) UpdateRunDimension(_ context.Context, dim catalog.RunDimension) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.dimensions[dim.RunID]
	if !ok {
		return nil
	}
	if existing, ok := rows[dim.Dimension]; ok {
		if existing.Status == catalog.DimensionStatusSucceeded || existing.Status == catalog.DimensionStatusFailed {
			return nil
		}
	}
	rows[dim.Dimension] = dim
	return nil
}

func (s *memStore) FinishRun(_ context.Context, runID, status, errMsg string, promptTokens, completionTokens int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok || run.FinishedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	run.Status = status
	run.Error = errMsg
	run.PromptTokens = promptTokens
	run.CompletionTokens = completionTokens
	run.FinishedAt = &now
	return nil
}

func (s *memStore) GetRun(_ context.Context, runID string) (*catalog.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	copied := *run
	for _, dim := range s.dimensions[runID] {
		copied.DimensionRuns = append(copied.DimensionRuns, dim)
	}
	return &copied, nil
}

func (s *memStore) ListRuns(_ context.Context, _ int) ([]catalog.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.AnalysisRun
	for _, run := range s.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (s *memStore) RecordRouting(_ context.Context, decision catalog.RoutingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routing = append(s.routing, decision)
	return nil
}

func (s *memStore) RoutingStats(_ context.Context) ([]catalog.VariantStats, error) {
	return nil, nil
}

func (s *memStore) ListRoutingDecisions(_ context.Context, _ int) ([]catalog.RoutingDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.RoutingDecision(nil), s.routing...), nil
}

func (s *memStore) SaveTranscript(_ context.Context, t transcript.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[t.CallID] = t
	return nil
}

func (s *memStore) GetTranscript(_ context.Context, callID string) (*transcript.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transcripts[callID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &t, nil
}

// stubProvider answers per dimension, parsing the coaching dimension from the
// user prompt's first line. Call counts are tracked per dimension.
type stubProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	failWith map[string]error
	scores   map[string]int
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		calls:    make(map[string]int),
		failWith: make(map[string]error),
		scores:   make(map[string]int),
	}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Chat(_ context.Context, messages []llm.Message) (llm.Completion, error) {
	user := messages[len(messages)-1].Content
	line, _, _ := strings.Cut(user, " (rubric version")
	dimension := strings.TrimPrefix(line, "Coaching dimension: ")

	p.mu.Lock()
	p.calls[dimension]++
	err := p.failWith[dimension]
	score, ok := p.scores[dimension]
	p.mu.Unlock()

	if err != nil {
		return llm.Completion{}, err
	}
	if !ok {
		score = 70
	}
	content := fmt.Sprintf(`{
  "score": %d,
  "strengths": ["asked layered discovery questions"],
  "improvements": ["quantify the cost of the problem"],
  "examples": [{"speaker": "Rep", "quote": "What happens if this stays broken?", "timestamp": 1.2, "analysis": "Good probing question."}],
  "action_items": ["Ask about budget ownership early in the call"]
}`, score)
	return llm.Completion{Content: content, Usage: llm.Usage{PromptTokens: 120, CompletionTokens: 48}}, nil
}

func (p *stubProvider) callCount(dimension string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[dimension]
}

func (p *stubProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

func seededStore(t *testing.T) *memStore {
	t.Helper()
	store := newMemStore()
	if err := rubric.Seed(context.Background(), store); err != nil {
		t.Fatalf("seed rubrics: %v", err)
	}
	err := store.SaveTranscript(context.Background(), transcript.Transcript{
		CallID: "H1",
		RepID:  "rep-7",
		Utterances: []transcript.Utterance{
			{Speaker: "Rep", Text: "What happens if this stays broken?", Timestamp: 1.2},
			{Speaker: "Customer", Text: "We lose about a week per quarter.", Timestamp: 4.8},
		},
	})
	if err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	return store
}

func newTestEngine(store catalog.Store, provider llm.Provider, cfg Config) *Engine {
	return New(store, provider, cfg, WithSleeper(func(time.Duration) {}))
}

func TestAnalyzeSucceedsAndCaches(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	provider.scores["discovery"] = 78
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	first, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"discovery"}})
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	if first.Status != catalog.RunStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", first.Status)
	}
	got := first.Results["discovery"]
	if got.Score != 78 {
		t.Fatalf("expected score 78, got %d", got.Score)
	}
	if got.Cached {
		t.Fatal("first evaluation must not be a cache hit")
	}
	if provider.callCount("discovery") != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.callCount("discovery"))
	}

	second, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"discovery"}})
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	cached := second.Results["discovery"]
	if !cached.Cached {
		t.Fatal("second evaluation should be served from cache")
	}
	if cached.Score != 78 {
		t.Fatalf("cached score changed: %d", cached.Score)
	}
	if second.PromptTokens != 0 || second.CompletionTokens != 0 {
		t.Fatalf("cache hit must report zero usage, got %d/%d", second.PromptTokens, second.CompletionTokens)
	}
	if provider.callCount("discovery") != 1 {
		t.Fatalf("cache hit still called provider: %d calls", provider.callCount("discovery"))
	}
}

func TestAnalyzeDeduplicatesRequestedDimensions(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	provider.scores["discovery"] = 70
	provider.scores["engagement"] = 80
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	result, err := eng.Analyze(context.Background(), Request{
		CallID:     "H1",
		Dimensions: []string{"discovery", "discovery", "engagement"},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Dimensions) != 2 {
		t.Fatalf("dimensions = %v, want 2 distinct", result.Dimensions)
	}
	if result.Dimensions[0] != "discovery" || result.Dimensions[1] != "engagement" {
		t.Fatalf("dimensions = %v, want first-occurrence order", result.Dimensions)
	}
	if provider.callCount("discovery") != 1 {
		t.Fatalf("duplicate entry re-evaluated: %d calls", provider.callCount("discovery"))
	}

	run, err := store.GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if len(run.Dimensions) != 2 {
		t.Fatalf("run dimensions = %v, want deduplicated", run.Dimensions)
	}
	if len(run.DimensionRuns) != 2 {
		t.Fatalf("expected 2 dimension rows, got %d", len(run.DimensionRuns))
	}
}

func TestAnalyzeRubricVersionBumpInvalidatesCache(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	if _, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"discovery"}}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := store.PublishRubric(context.Background(), catalog.Rubric{
		Dimension: "discovery",
		Version:   "2.0",
		Criteria:  "Updated discovery criteria.",
	}); err != nil {
		t.Fatalf("publish rubric: %v", err)
	}
	result, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"discovery"}})
	if err != nil {
		t.Fatalf("analyze after bump: %v", err)
	}
	if result.Results["discovery"].Cached {
		t.Fatal("new rubric version must miss the cache")
	}
	if provider.callCount("discovery") != 2 {
		t.Fatalf("expected re-evaluation after version bump, got %d calls", provider.callCount("discovery"))
	}
}

func TestAnalyzeForceBypassesCache(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	if _, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"discovery"}}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	forced, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"discovery"}, Force: true})
	if err != nil {
		t.Fatalf("forced analyze: %v", err)
	}
	if forced.Results["discovery"].Cached {
		t.Fatal("forced run must not be served from cache")
	}
	if provider.callCount("discovery") != 2 {
		t.Fatalf("expected 2 provider calls, got %d", provider.callCount("discovery"))
	}
}

func TestAnalyzePartialFailureIsolation(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	provider.failWith["engagement"] = &providers.StatusError{StatusCode: 503, Message: "upstream overloaded"}
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	result, err := eng.Analyze(context.Background(), Request{CallID: "H1"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Status != catalog.RunStatusPartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 successful dimensions, got %d", len(result.Results))
	}
	if _, ok := result.Failures["engagement"]; !ok {
		t.Fatal("engagement failure missing from result")
	}
	if got := provider.callCount("engagement"); got != 3 {
		t.Fatalf("expected exactly 3 attempts for the failing dimension, got %d", got)
	}
	for _, dim := range []string{"discovery", "objection_handling", "product_knowledge"} {
		if got := provider.callCount(dim); got != 1 {
			t.Fatalf("dimension %s called %d times", dim, got)
		}
	}

	run, err := store.GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != catalog.RunStatusPartial {
		t.Fatalf("recorded run status %s", run.Status)
	}
	var failedRows int
	for _, dim := range run.DimensionRuns {
		if dim.Status == catalog.DimensionStatusFailed {
			failedRows++
			if dim.Dimension != "engagement" {
				t.Fatalf("unexpected failed dimension row %s", dim.Dimension)
			}
		}
	}
	if failedRows != 1 {
		t.Fatalf("expected 1 failed dimension row, got %d", failedRows)
	}
}

func TestAnalyzeAllFailedUsesRequestedOrder(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	provider.failWith["discovery"] = errors.New("discovery prompt rejected")
	provider.failWith["engagement"] = errors.New("engagement prompt rejected")
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	result, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"engagement", "discovery"}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Status != catalog.RunStatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if !strings.Contains(result.Error, "engagement") {
		t.Fatalf("expected first requested dimension's error, got %q", result.Error)
	}
}

func TestAnalyzeUnifiedVariantConsolidates(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	eng := newTestEngine(store, provider, Config{CacheEnabled: true, RolloutPercent: 100})

	result, err := eng.Analyze(context.Background(), Request{CallID: "H1"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Variant != pipeline.VariantUnified {
		t.Fatalf("expected unified variant at 100%% rollout, got %s", result.Variant)
	}
	if result.Consolidated == nil {
		t.Fatal("unified run missing consolidated output")
	}
	if result.Consolidated.Action.Text == "" {
		t.Fatal("consolidated output missing action")
	}
	if result.Consolidated.Narrative == "" {
		t.Fatal("consolidated output missing narrative")
	}
}

func TestAnalyzeLegacyVariantSkipsConsolidation(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	result, err := eng.Analyze(context.Background(), Request{CallID: "H1"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Variant != pipeline.VariantLegacy {
		t.Fatalf("expected legacy variant at 0%% rollout, got %s", result.Variant)
	}
	if result.Consolidated != nil {
		t.Fatal("legacy run must not consolidate")
	}
}

func TestAnalyzeMissingTranscript(t *testing.T) {
	store := seededStore(t)
	eng := newTestEngine(store, newStubProvider(), Config{CacheEnabled: true})

	_, err := eng.Analyze(context.Background(), Request{CallID: "no-such-call"})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalyzeRecordsRoutingDecision(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	provider.scores["discovery"] = 80
	provider.scores["engagement"] = 60
	eng := newTestEngine(store, provider, Config{CacheEnabled: true})

	result, err := eng.Analyze(context.Background(), Request{CallID: "H1", Dimensions: []string{"discovery", "engagement"}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(store.routing) != 1 {
		t.Fatalf("expected 1 routing decision, got %d", len(store.routing))
	}
	decision := store.routing[0]
	if decision.RunID != result.RunID || decision.Variant != string(pipeline.VariantLegacy) {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if decision.MeanScore != 70 {
		t.Fatalf("expected mean score 70, got %v", decision.MeanScore)
	}
}

func TestAnalyzeCacheDisabled(t *testing.T) {
	store := seededStore(t)
	provider := newStubProvider()
	eng := newTestEngine(store, provider, Config{CacheEnabled: false, Dimensions: []string{"discovery"}})

	for i := 0; i < 2; i++ {
		if _, err := eng.Analyze(context.Background(), Request{CallID: "H1"}); err != nil {
			t.Fatalf("analyze %d: %v", i, err)
		}
	}
	if got := provider.totalCalls(); got != 2 {
		t.Fatalf("cache disabled should call provider every run, got %d calls", got)
	}
	if len(store.evaluations) != 0 {
		t.Fatalf("cache disabled must not store evaluations, found %d", len(store.evaluations))
	}
}
