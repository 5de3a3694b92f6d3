package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/llm"
	"github.com/mkhalidji/callcoach/internal/llm/providers"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
	defaultEvalTimeout    = 60 * time.Second
)

// Config controls the evaluator's retry budget and per-dimension timeout. The
// timeout covers all retry attempts for one dimension.
type Config struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	EvalTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = defaultEvalTimeout
	}
	return c
}

// Option customizes the evaluator.
type Option func(*Evaluator)

// WithSleeper overrides how retry sleeps are performed. Used in tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Evaluator) {
		e.sleeper = sleeper
	}
}

// Evaluator runs one LLM evaluation per (transcript, rubric) pair with
// caching and retries. A nil cache disables caching entirely.
type Evaluator struct {
	provider llm.Provider
	cache    catalog.EvaluationCache
	cfg      Config
	sleeper  func(time.Duration)
}

func New(provider llm.Provider, cache catalog.EvaluationCache, cfg Config, opts ...Option) *Evaluator {
	e := &Evaluator{provider: provider, cache: cache, cfg: cfg.withDefaults()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Options control a single Evaluate call.
type Options struct {
	// BypassCache skips the cache lookup (forced re-analysis) but still
	// stores the fresh result.
	BypassCache bool
}

// Evaluate produces the DimensionResult for one transcript against one rubric
// version. On a cache hit the stored result is returned verbatim with zero
// token usage. Failures are *MalformedResponseError or
// *ProviderUnavailableError.
func (e *Evaluator) Evaluate(ctx context.Context, t transcript.Transcript, rubric catalog.Rubric, opts Options) (DimensionResult, error) {
	if e == nil || e.provider == nil {
		return DimensionResult{}, errors.New("evaluator: provider required")
	}
	logger := common.Logger()
	hash := t.ContentHash()

	if e.cache != nil && !opts.BypassCache {
		cached, err := e.cache.LookupEvaluation(ctx, hash, rubric.Dimension, rubric.Version)
		if err != nil {
			logger.Warn("evaluator: cache lookup failed", "dimension", rubric.Dimension, "error", err)
		} else if cached != nil {
			var result DimensionResult
			if err := json.Unmarshal(cached.Payload, &result); err != nil {
				logger.Warn("evaluator: discarding unreadable cache entry",
					"dimension", rubric.Dimension, "rubric_version", rubric.Version, "error", err)
			} else {
				result.Cached = true
				result.Usage = llm.Usage{}
				logger.Debug("evaluator: cache hit",
					"dimension", rubric.Dimension, "rubric_version", rubric.Version)
				return result, nil
			}
		}
	}

	evalCtx, cancel := context.WithTimeout(ctx, e.cfg.EvalTimeout)
	defer cancel()

	system, user := buildPrompt(rubric, t)
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	completion, err := e.chatWithRetry(evalCtx, messages, rubric.Dimension)
	if err != nil {
		return DimensionResult{}, err
	}

	result, err := parseResult(rubric.Dimension, completion.Content)
	if err != nil {
		return DimensionResult{}, err
	}
	result.Usage = completion.Usage

	if e.cache != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			logger.Warn("evaluator: encode cache payload failed", "dimension", rubric.Dimension, "error", err)
		} else if err := e.cache.StoreEvaluation(ctx, catalog.CachedEvaluation{
			TranscriptHash: hash,
			Dimension:      rubric.Dimension,
			RubricVersion:  rubric.Version,
			Payload:        payload,
		}); err != nil {
			// A failed cache write costs a recomputation later, never
			// correctness.
			logger.Warn("evaluator: cache store failed", "dimension", rubric.Dimension, "error", err)
		}
	}
	logger.Info("evaluator: dimension evaluated",
		"dimension", rubric.Dimension, "rubric_version", rubric.Version,
		"score", result.Score, "prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens)
	return result, nil
}

func (e *Evaluator) chatWithRetry(ctx context.Context, messages []llm.Message, dimension string) (llm.Completion, error) {
	attempts := e.cfg.RetryAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		completion, err := e.provider.Chat(ctx, messages)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		delay, retry := e.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return llm.Completion{}, &ProviderUnavailableError{Dimension: dimension, Attempts: attempt, Err: err}
		}
		common.Logger().Warn("evaluator: transient provider failure, retrying",
			"dimension", dimension, "attempt", attempt, "delay", delay, "error", err)
		if err := e.sleep(ctx, delay); err != nil {
			return llm.Completion{}, &ProviderUnavailableError{Dimension: dimension, Attempts: attempt, Err: err}
		}
	}
	return llm.Completion{}, &ProviderUnavailableError{Dimension: dimension, Attempts: attempts, Err: lastErr}
}

// retryDelay classifies the error and returns the delay before the next
// attempt. Only transient failures (HTTP 408/429/5xx, network timeouts) are
// retried; context expiry and permanent 4xx responses are not.
func (e *Evaluator) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 408,
			statusErr.StatusCode == 429,
			statusErr.StatusCode >= 500:
			if statusErr.RetryAfter > 0 {
				return e.capDelay(statusErr.RetryAfter), true
			}
			return e.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return e.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return e.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles per attempt: base, base*2, base*4, ... capped.
func (e *Evaluator) backoffDelay(attempt int) time.Duration {
	delay := e.cfg.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > e.cfg.RetryMaxDelay/2 {
			return e.cfg.RetryMaxDelay
		}
		delay *= 2
	}
	return e.capDelay(delay)
}

func (e *Evaluator) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if delay > e.cfg.RetryMaxDelay {
		return e.cfg.RetryMaxDelay
	}
	return delay
}

func (e *Evaluator) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
