package evaluator

import (
	"encoding/json"
	"strings"

	"github.com/mkhalidji/callcoach/internal/llm"
)

// Example is one verbatim transcript moment cited by the evaluation.
type Example struct {
	Speaker   string  `json:"speaker,omitempty"`
	Quote     string  `json:"quote"`
	Timestamp float64 `json:"timestamp"`
	Analysis  string  `json:"analysis,omitempty"`
}

// DimensionResult is the structured outcome of evaluating one transcript
// against one rubric version. It is never mutated after creation; cache hits
// return a copy with Cached set and zero usage.
type DimensionResult struct {
	Dimension    string    `json:"dimension"`
	Score        int       `json:"score"`
	Strengths    []string  `json:"strengths"`
	Improvements []string  `json:"improvements"`
	Examples     []Example `json:"examples"`
	ActionItems  []string  `json:"action_items"`
	Usage        llm.Usage `json:"usage"`
	Cached       bool      `json:"cached"`
}

// responsePayload is the shape requested from the provider. action_items is
// the canonical key; "actions" is tolerated because models drift.
type responsePayload struct {
	Score        *json.Number `json:"score"`
	Strengths    []string     `json:"strengths"`
	Improvements []string     `json:"improvements"`
	Examples     []Example    `json:"examples"`
	ActionItems  []string     `json:"action_items"`
	Actions      []string     `json:"actions"`
}

// parseResult normalizes provider output into a DimensionResult or fails with
// *MalformedResponseError. Scores outside [0,100] are rejected, never clamped.
func parseResult(dimension, content string) (DimensionResult, error) {
	var payload responsePayload
	if err := decodeModelJSON(content, &payload); err != nil {
		return DimensionResult{}, &MalformedResponseError{
			Dimension: dimension,
			Reason:    err.Error(),
			Snippet:   payloadSnippet(content),
		}
	}
	if payload.Score == nil {
		return DimensionResult{}, &MalformedResponseError{
			Dimension: dimension,
			Reason:    "score field missing",
			Snippet:   payloadSnippet(content),
		}
	}
	score, err := integerScore(*payload.Score)
	if err != nil {
		return DimensionResult{}, &MalformedResponseError{
			Dimension: dimension,
			Reason:    err.Error(),
			Snippet:   payloadSnippet(content),
		}
	}

	actions := payload.ActionItems
	if len(actions) == 0 {
		actions = payload.Actions
	}
	result := DimensionResult{
		Dimension:    dimension,
		Score:        score,
		Strengths:    cleanStrings(payload.Strengths),
		Improvements: cleanStrings(payload.Improvements),
		ActionItems:  cleanStrings(actions),
	}
	for _, example := range payload.Examples {
		example.Quote = strings.TrimSpace(example.Quote)
		if example.Quote == "" {
			continue
		}
		example.Speaker = strings.TrimSpace(example.Speaker)
		example.Analysis = strings.TrimSpace(example.Analysis)
		result.Examples = append(result.Examples, example)
	}
	return result, nil
}

func integerScore(raw json.Number) (int, error) {
	value, err := raw.Int64()
	if err != nil {
		// Tolerate integral floats such as 78.0 but nothing fractional.
		f, ferr := raw.Float64()
		if ferr != nil || f != float64(int64(f)) {
			return 0, &scoreError{raw: raw.String(), reason: "not an integer"}
		}
		value = int64(f)
	}
	if value < 0 || value > 100 {
		return 0, &scoreError{raw: raw.String(), reason: "outside [0,100]"}
	}
	return int(value), nil
}

type scoreError struct {
	raw    string
	reason string
}

func (e *scoreError) Error() string {
	return "score " + e.raw + " " + e.reason
}

func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
