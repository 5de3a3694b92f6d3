// Package engine orchestrates a full analysis run: it resolves the active
// rubric for every requested dimension, fans the evaluations out in parallel,
// records the run lifecycle and routes calls between the legacy and unified
// pipelines.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/consolidate"
	"github.com/mkhalidji/callcoach/internal/evaluator"
	"github.com/mkhalidji/callcoach/internal/llm"
	"github.com/mkhalidji/callcoach/internal/pipeline"
	"github.com/mkhalidji/callcoach/internal/rubric"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

// Option customizes engine construction.
type Option func(*Engine)

// WithSleeper forwards a sleep override to the evaluator's retry loop. Used
// in tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Engine) {
		e.evalOpts = append(e.evalOpts, evaluator.WithSleeper(sleeper))
	}
}

// Engine runs coaching analyses against the catalog.
type Engine struct {
	store    catalog.Store
	resolver *rubric.Resolver
	eval     *evaluator.Evaluator
	router   *pipeline.Router
	cfg      Config
	evalOpts []evaluator.Option
}

// New wires an engine from its backing store and LLM provider. Caching is
// disabled entirely when the configuration says so.
func New(store catalog.Store, provider llm.Provider, cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		store:    store,
		resolver: rubric.NewResolver(store),
		router:   pipeline.NewRouter(cfg.RolloutPercent),
		cfg:      cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	var cache catalog.EvaluationCache
	if cfg.CacheEnabled {
		cache = store
	}
	e.eval = evaluator.New(provider, cache, evaluator.Config{
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		EvalTimeout:    cfg.EvalTimeout,
	}, e.evalOpts...)
	return e
}

// Request asks for one analysis run. Dimensions defaults to the configured
// set; Force bypasses the evaluation cache for every dimension.
type Request struct {
	CallID     string
	Dimensions []string
	Force      bool
}

// Result is the outcome of one analysis run. Results and Failures partition
// the requested dimensions; Consolidated is set only on the unified pipeline
// when at least one dimension succeeded.
type Result struct {
	RunID            string
	CallID           string
	Variant          pipeline.Variant
	Status           string
	Error            string
	Dimensions       []string
	Results          map[string]evaluator.DimensionResult
	Failures         map[string]string
	Consolidated     *consolidate.Output
	PromptTokens     int64
	CompletionTokens int64
	StartedAt        time.Time
	FinishedAt       time.Time
}

type dimensionOutcome struct {
	result evaluator.DimensionResult
	err    error
}

// Analyze runs the requested dimensions concurrently and waits for all of
// them. A failing dimension never interrupts its siblings; the run status
// reflects the mix of outcomes. Recorder and router persistence failures are
// logged but never fail the analysis.
func (e *Engine) Analyze(ctx context.Context, req Request) (Result, error) {
	callID := strings.TrimSpace(req.CallID)
	if callID == "" {
		return Result{}, errors.New("engine: call id required")
	}
	dims := req.Dimensions
	if len(dims) == 0 {
		dims = e.cfg.Dimensions
	}
	dims = dedupeDimensions(dims)

	stored, err := e.store.GetTranscript(ctx, callID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Result{}, fmt.Errorf("engine: no transcript for call %s: %w", callID, err)
		}
		return Result{}, fmt.Errorf("engine: load transcript %s: %w", callID, err)
	}

	logger := common.Logger()
	variant := e.router.Select(callID)
	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	if err := e.store.CreateRun(ctx, catalog.AnalysisRun{
		RunID:      runID,
		CallID:     callID,
		Variant:    string(variant),
		Dimensions: dims,
		Status:     catalog.RunStatusRunning,
		StartedAt:  startedAt,
	}); err != nil {
		logger.Warn("engine: create run record failed", "run_id", runID, "error", err)
	}

	logger.Info("engine: analysis started",
		"run_id", runID, "call_id", callID, "variant", variant,
		"dimensions", strings.Join(dims, ","), "force", req.Force)

	outcomes := make([]dimensionOutcome, len(dims))
	var wg sync.WaitGroup
	for i, dim := range dims {
		wg.Add(1)
		go func(slot int, dimension string) {
			defer wg.Done()
			outcomes[slot] = e.evaluateDimension(ctx, runID, *stored, dimension, req.Force)
		}(i, dim)
	}
	wg.Wait()

	result := Result{
		RunID:      runID,
		CallID:     callID,
		Variant:    variant,
		Dimensions: dims,
		Results:    make(map[string]evaluator.DimensionResult, len(dims)),
		Failures:   make(map[string]string),
		StartedAt:  startedAt,
	}
	var succeeded []evaluator.DimensionResult
	var usage llm.Usage
	for i, dim := range dims {
		if outcomes[i].err != nil {
			result.Failures[dim] = outcomes[i].err.Error()
			continue
		}
		result.Results[dim] = outcomes[i].result
		usage = usage.Add(outcomes[i].result.Usage)
		succeeded = append(succeeded, outcomes[i].result)
	}
	result.PromptTokens = usage.PromptTokens
	result.CompletionTokens = usage.CompletionTokens

	switch {
	case len(succeeded) == 0:
		result.Status = catalog.RunStatusFailed
		result.Error = firstError(dims, outcomes)
	case len(succeeded) < len(dims):
		result.Status = catalog.RunStatusPartial
	default:
		result.Status = catalog.RunStatusSucceeded
	}

	if variant == pipeline.VariantUnified && len(succeeded) > 0 {
		output := consolidate.Consolidate(succeeded, e.cfg.CallType)
		result.Consolidated = &output
	}
	result.FinishedAt = time.Now().UTC()

	if err := e.store.FinishRun(ctx, runID, result.Status, result.Error,
		result.PromptTokens, result.CompletionTokens); err != nil {
		logger.Warn("engine: finish run record failed", "run_id", runID, "error", err)
	}
	e.recordRouting(ctx, result, succeeded)

	logger.Info("engine: analysis finished",
		"run_id", runID, "call_id", callID, "status", result.Status,
		"succeeded", len(succeeded), "failed", len(result.Failures),
		"elapsed", result.FinishedAt.Sub(startedAt))
	return result, nil
}

// evaluateDimension resolves the active rubric and evaluates one dimension.
// It writes only its own outcome slot; the run-dimension row is updated as a
// side effect and its failure never affects the evaluation result.
func (e *Engine) evaluateDimension(ctx context.Context, runID string, t transcript.Transcript, dimension string, force bool) dimensionOutcome {
	logger := common.Logger()
	record := catalog.RunDimension{RunID: runID, Dimension: dimension}

	active, err := e.resolver.Resolve(ctx, dimension)
	if err == nil {
		var result evaluator.DimensionResult
		result, err = e.eval.Evaluate(ctx, t, active, evaluator.Options{BypassCache: force})
		if err == nil {
			record.Status = catalog.DimensionStatusSucceeded
			record.Cached = result.Cached
			record.PromptTokens = result.Usage.PromptTokens
			record.CompletionTokens = result.Usage.CompletionTokens
			if recErr := e.store.UpdateRunDimension(ctx, record); recErr != nil {
				logger.Warn("engine: record dimension result failed",
					"run_id", runID, "dimension", dimension, "error", recErr)
			}
			return dimensionOutcome{result: result}
		}
	}

	logger.Warn("engine: dimension failed",
		"run_id", runID, "dimension", dimension, "error", err)
	record.Status = catalog.DimensionStatusFailed
	record.Error = err.Error()
	if recErr := e.store.UpdateRunDimension(ctx, record); recErr != nil {
		logger.Warn("engine: record dimension failure failed",
			"run_id", runID, "dimension", dimension, "error", recErr)
	}
	return dimensionOutcome{err: err}
}

// firstError picks the failure message shown for an all-failed run. Requested
// dimension order keeps it stable regardless of goroutine completion order.
// dedupeDimensions keeps the first occurrence of each requested dimension so
// a repeated entry cannot produce duplicate run rows.
func dedupeDimensions(dims []string) []string {
	if len(dims) < 2 {
		return dims
	}
	seen := make(map[string]struct{}, len(dims))
	out := dims[:0:0]
	for _, dim := range dims {
		if _, ok := seen[dim]; ok {
			continue
		}
		seen[dim] = struct{}{}
		out = append(out, dim)
	}
	return out
}

func firstError(dims []string, outcomes []dimensionOutcome) string {
	for i := range dims {
		if outcomes[i].err != nil {
			return outcomes[i].err.Error()
		}
	}
	return ""
}

func (e *Engine) recordRouting(ctx context.Context, result Result, succeeded []evaluator.DimensionResult) {
	var mean float64
	if len(succeeded) > 0 {
		var total int
		for _, r := range succeeded {
			total += r.Score
		}
		mean = float64(total) / float64(len(succeeded))
	}
	var failed []string
	for _, dim := range result.Dimensions {
		if _, ok := result.Failures[dim]; ok {
			failed = append(failed, dim)
		}
	}
	if err := e.store.RecordRouting(ctx, catalog.RoutingDecision{
		CallID:           result.CallID,
		RunID:            result.RunID,
		Variant:          string(result.Variant),
		Status:           result.Status,
		MeanScore:        mean,
		FailedDimensions: failed,
		DecidedAt:        result.FinishedAt,
	}); err != nil {
		common.Logger().Warn("engine: record routing decision failed",
			"run_id", result.RunID, "error", err)
	}
}
