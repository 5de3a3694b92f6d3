package sqlite

import (
	"strings"
	"time"

	"github.com/mkhalidji/callcoach/internal/catalog"
)

// rubricRow mirrors the rubrics table.
type rubricRow struct {
	ID           int64      `db:"id"`
	Dimension    string     `db:"dimension"`
	Version      string     `db:"version"`
	Criteria     string     `db:"criteria"`
	ScoringGuide string     `db:"scoring_guide"`
	Examples     string     `db:"examples"`
	Active       bool       `db:"active"`
	CreatedAt    time.Time  `db:"created_at"`
	DeprecatedAt *time.Time `db:"deprecated_at"`
}

func (r rubricRow) record() catalog.Rubric {
	return catalog.Rubric{
		ID:           r.ID,
		Dimension:    r.Dimension,
		Version:      r.Version,
		Criteria:     r.Criteria,
		ScoringGuide: r.ScoringGuide,
		Examples:     r.Examples,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
		DeprecatedAt: r.DeprecatedAt,
	}
}

// evaluationRow mirrors the evaluations cache table.
type evaluationRow struct {
	TranscriptHash string    `db:"transcript_hash"`
	Dimension      string    `db:"dimension"`
	RubricVersion  string    `db:"rubric_version"`
	Payload        string    `db:"payload"`
	CreatedAt      time.Time `db:"created_at"`
}

func (e evaluationRow) record() catalog.CachedEvaluation {
	return catalog.CachedEvaluation{
		TranscriptHash: e.TranscriptHash,
		Dimension:      e.Dimension,
		RubricVersion:  e.RubricVersion,
		Payload:        []byte(e.Payload),
		CreatedAt:      e.CreatedAt,
	}
}

// runRow mirrors the analysis_runs table.
type runRow struct {
	RunID            string     `db:"run_id"`
	CallID           string     `db:"call_id"`
	Variant          string     `db:"variant"`
	Dimensions       string     `db:"dimensions"`
	Status           string     `db:"status"`
	Error            string     `db:"error"`
	PromptTokens     int64      `db:"prompt_tokens"`
	CompletionTokens int64      `db:"completion_tokens"`
	StartedAt        time.Time  `db:"started_at"`
	FinishedAt       *time.Time `db:"finished_at"`
}

func (r runRow) record() catalog.AnalysisRun {
	return catalog.AnalysisRun{
		RunID:            r.RunID,
		CallID:           r.CallID,
		Variant:          r.Variant,
		Dimensions:       splitList(r.Dimensions),
		Status:           r.Status,
		Error:            r.Error,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}

// runDimensionRow mirrors the run_dimensions table.
type runDimensionRow struct {
	RunID            string    `db:"run_id"`
	Dimension        string    `db:"dimension"`
	Status           string    `db:"status"`
	Error            string    `db:"error"`
	Cached           bool      `db:"cached"`
	PromptTokens     int64     `db:"prompt_tokens"`
	CompletionTokens int64     `db:"completion_tokens"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r runDimensionRow) record() catalog.RunDimension {
	return catalog.RunDimension{
		RunID:            r.RunID,
		Dimension:        r.Dimension,
		Status:           r.Status,
		Error:            r.Error,
		Cached:           r.Cached,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		UpdatedAt:        r.UpdatedAt,
	}
}

// routingRow mirrors the routing_decisions table.
type routingRow struct {
	ID               int64     `db:"id"`
	CallID           string    `db:"call_id"`
	RunID            string    `db:"run_id"`
	Variant          string    `db:"variant"`
	Status           string    `db:"status"`
	MeanScore        float64   `db:"mean_score"`
	FailedDimensions string    `db:"failed_dimensions"`
	DecidedAt        time.Time `db:"decided_at"`
}

func (r routingRow) record() catalog.RoutingDecision {
	return catalog.RoutingDecision{
		ID:               r.ID,
		CallID:           r.CallID,
		RunID:            r.RunID,
		Variant:          r.Variant,
		Status:           r.Status,
		MeanScore:        r.MeanScore,
		FailedDimensions: splitList(r.FailedDimensions),
		DecidedAt:        r.DecidedAt,
	}
}

// transcriptRow mirrors the transcripts table.
type transcriptRow struct {
	CallID      string    `db:"call_id"`
	RepID       string    `db:"rep_id"`
	ContentHash string    `db:"content_hash"`
	Utterances  string    `db:"utterances"`
	CreatedAt   time.Time `db:"created_at"`
}

func joinList(values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
