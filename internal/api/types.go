package api

import (
	"github.com/mkhalidji/callcoach/internal/consolidate"
	"github.com/mkhalidji/callcoach/internal/evaluator"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

type analyzeRequest struct {
	CallID     string   `json:"call_id"`
	Dimensions []string `json:"dimensions,omitempty"`
	Force      bool     `json:"force,omitempty"`
}

type analyzeResponse struct {
	RunID            string                                `json:"run_id"`
	CallID           string                                `json:"call_id"`
	Variant          string                                `json:"variant"`
	Status           string                                `json:"status"`
	Error            string                                `json:"error,omitempty"`
	Results          map[string]evaluator.DimensionResult  `json:"results"`
	Failures         map[string]string                     `json:"failures,omitempty"`
	Consolidated     *consolidate.Output                   `json:"consolidated,omitempty"`
	PromptTokens     int64                                 `json:"prompt_tokens"`
	CompletionTokens int64                                 `json:"completion_tokens"`
}

type ingestTranscriptRequest struct {
	CallID     string                 `json:"call_id"`
	RepID      string                 `json:"rep_id,omitempty"`
	Utterances []transcript.Utterance `json:"utterances"`
}

type ingestTranscriptResponse struct {
	CallID      string `json:"call_id"`
	ContentHash string `json:"content_hash"`
	Utterances  int    `json:"utterances"`
}

type publishRubricRequest struct {
	Dimension    string `json:"dimension"`
	Version      string `json:"version"`
	Criteria     string `json:"criteria"`
	ScoringGuide string `json:"scoring_guide,omitempty"`
	Examples     string `json:"examples,omitempty"`
}
