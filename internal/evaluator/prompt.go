package evaluator

import (
	"fmt"
	"strings"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/transcript"
)

const systemPrompt = `You are an expert sales coach reviewing a recorded sales call.
Evaluate the call strictly against the rubric the user provides and respond with JSON only,
no markdown and no commentary outside the JSON object. Use exactly this shape:
{
  "score": <integer 0-100>,
  "strengths": ["<specific thing the rep did well>"],
  "improvements": ["<specific thing to improve>"],
  "examples": [{"speaker": "<speaker name>", "quote": "<verbatim quote from the transcript>", "timestamp": <seconds>, "analysis": "<one-sentence analysis>"}],
  "action_items": ["<concrete action the rep should take on the next call>"]
}
Quotes must be verbatim from the transcript with their original timestamps.
The score must be an integer between 0 and 100.`

// buildPrompt renders the system and user messages for one dimension
// evaluation. The rubric criteria, scoring guide and worked examples are
// embedded verbatim so the active rubric version fully determines the
// instruction content.
func buildPrompt(rubric catalog.Rubric, t transcript.Transcript) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Coaching dimension: %s (rubric version %s)\n\n", rubric.Dimension, rubric.Version)
	fmt.Fprintf(&b, "Evaluation criteria:\n%s\n\n", strings.TrimSpace(rubric.Criteria))
	if guide := strings.TrimSpace(rubric.ScoringGuide); guide != "" {
		fmt.Fprintf(&b, "Scoring guide:\n%s\n\n", guide)
	}
	if examples := strings.TrimSpace(rubric.Examples); examples != "" {
		fmt.Fprintf(&b, "Worked examples:\n%s\n\n", examples)
	}
	if rep := strings.TrimSpace(t.RepID); rep != "" {
		fmt.Fprintf(&b, "The rep being coached is %q.\n\n", rep)
	}
	fmt.Fprintf(&b, "Call transcript:\n%s", t.Render())
	return systemPrompt, b.String()
}
