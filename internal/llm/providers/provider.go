package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is a single chat message sent to the provider.
type Message struct {
	Role    string
	Content string
}

// Usage counts the tokens consumed by one provider call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Add accumulates another call's usage.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// Completion is the provider's response to a chat request.
type Completion struct {
	Content string
	Usage   Usage
}

// Provider is the minimal LLM surface the evaluator depends on.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (Completion, error)
	Name() string
}

// StatusError reports an HTTP-level provider failure. The evaluator uses the
// status code to decide whether the failure is transient.
type StatusError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Message))
}

// LocalProvider is the offline fallback used when no API key is configured.
// It emits a fixed, well-formed evaluation payload so the rest of the engine
// can be exercised without network access.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

const localEvaluationPayload = `{
  "score": 70,
  "strengths": ["Opened with a clear agenda", "Asked an open-ended discovery question"],
  "improvements": ["Did not confirm budget before discussing pricing"],
  "examples": [
    {"speaker": "Rep", "quote": "What prompted you to take this call?", "timestamp": 9.3,
     "analysis": "Good open-ended discovery question early in the call."}
  ],
  "action_items": ["Confirm budget ownership before the next pricing conversation"]
}`

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (Completion, error) {
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}
	if len(messages) == 0 {
		return Completion{}, fmt.Errorf("no messages provided")
	}
	return Completion{Content: localEvaluationPayload}, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
