package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/mkhalidji/callcoach/internal/transcript"
)

// ErrNotFound is returned when a lookup misses on its primary key.
var ErrNotFound = errors.New("catalog: not found")

// Rubric is a versioned criteria set for evaluating one coaching dimension.
// Rows are immutable: publishing new criteria inserts a new version and flips
// the active flag, it never rewrites an existing row. At most one version per
// dimension is active at a time.
type Rubric struct {
	ID           int64      `json:"id"`
	Dimension    string     `json:"dimension"`
	Version      string     `json:"version"`
	Criteria     string     `json:"criteria"`
	ScoringGuide string     `json:"scoring_guide"`
	Examples     string     `json:"examples"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty"`
}

// CachedEvaluation is one write-once cache row. The three key fields must all
// match for a hit; Payload holds the serialized dimension result.
type CachedEvaluation struct {
	TranscriptHash string    `json:"transcript_hash"`
	Dimension      string    `json:"dimension"`
	RubricVersion  string    `json:"rubric_version"`
	Payload        []byte    `json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
}

// Run statuses. A run is partial when at least one but not every requested
// dimension succeeded.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// Dimension statuses within a run.
const (
	DimensionStatusPending   = "pending"
	DimensionStatusSucceeded = "succeeded"
	DimensionStatusFailed    = "failed"
)

// AnalysisRun records one orchestrator invocation for one call.
type AnalysisRun struct {
	RunID            string         `json:"run_id"`
	CallID           string         `json:"call_id"`
	Variant          string         `json:"variant"`
	Dimensions       []string       `json:"dimensions"`
	Status           string         `json:"status"`
	Error            string         `json:"error,omitempty"`
	PromptTokens     int64          `json:"prompt_tokens"`
	CompletionTokens int64          `json:"completion_tokens"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
	DimensionRuns    []RunDimension `json:"dimension_runs,omitempty"`
}

// RunDimension is the per-dimension state inside a run. Updates are idempotent
// once the row reaches a terminal status.
type RunDimension struct {
	RunID            string    `json:"run_id"`
	Dimension        string    `json:"dimension"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	Cached           bool      `json:"cached"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RoutingDecision is the immutable comparison record appended after every
// routed run. Variant statistics are aggregated from these rows at read time
// rather than kept in live counters.
type RoutingDecision struct {
	ID               int64     `json:"id"`
	CallID           string    `json:"call_id"`
	RunID            string    `json:"run_id"`
	Variant          string    `json:"variant"`
	Status           string    `json:"status"`
	MeanScore        float64   `json:"mean_score"`
	FailedDimensions []string  `json:"failed_dimensions,omitempty"`
	DecidedAt        time.Time `json:"decided_at"`
}

// VariantStats aggregates routing outcomes for one pipeline variant.
type VariantStats struct {
	Variant   string  `json:"variant"`
	Runs      int     `json:"runs"`
	Succeeded int     `json:"succeeded"`
	Partial   int     `json:"partial"`
	Failed    int     `json:"failed"`
	MeanScore float64 `json:"mean_score"`
}

// RubricStore resolves and publishes evaluation rubrics.
type RubricStore interface {
	// ActiveRubric returns the single active rubric for a dimension or
	// ErrNotFound when no version is active.
	ActiveRubric(ctx context.Context, dimension string) (*Rubric, error)
	// PublishRubric inserts the rubric as the new active version for its
	// dimension, deactivating any prior active version in the same
	// transaction.
	PublishRubric(ctx context.Context, rubric Rubric) (*Rubric, error)
	ListRubrics(ctx context.Context, dimension string) ([]Rubric, error)
}

// EvaluationCache is the content-addressed dimension-result cache. Writes are
// idempotent per key.
type EvaluationCache interface {
	// LookupEvaluation returns nil without error on a miss.
	LookupEvaluation(ctx context.Context, transcriptHash, dimension, rubricVersion string) (*CachedEvaluation, error)
	StoreEvaluation(ctx context.Context, entry CachedEvaluation) error
}

// RunStore persists analysis run lifecycles.
type RunStore interface {
	CreateRun(ctx context.Context, run AnalysisRun) error
	// UpdateRunDimension is a no-op when the dimension row already holds a
	// terminal status.
	UpdateRunDimension(ctx context.Context, dim RunDimension) error
	FinishRun(ctx context.Context, runID, status, errMsg string, promptTokens, completionTokens int64) error
	GetRun(ctx context.Context, runID string) (*AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]AnalysisRun, error)
}

// RoutingStore records pipeline routing outcomes for A/B comparison.
type RoutingStore interface {
	RecordRouting(ctx context.Context, decision RoutingDecision) error
	RoutingStats(ctx context.Context) ([]VariantStats, error)
	ListRoutingDecisions(ctx context.Context, limit int) ([]RoutingDecision, error)
}

// TranscriptStore persists call transcripts.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, t transcript.Transcript) error
	GetTranscript(ctx context.Context, callID string) (*transcript.Transcript, error)
}

// Store is the full catalog surface backed by the relational database.
type Store interface {
	RubricStore
	EvaluationCache
	RunStore
	RoutingStore
	TranscriptStore
}
