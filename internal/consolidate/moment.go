package consolidate

import (
	"strings"

	"github.com/mkhalidji/callcoach/internal/evaluator"
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "with": {}, "this": {}, "for": {},
	"from": {}, "your": {}, "their": {}, "before": {}, "after": {},
	"about": {}, "next": {}, "call": {}, "rep": {}, "buyer": {},
}

// linkMoment finds the specific example across all dimensions most relevant
// to the selected action and returns it as supporting evidence. A nil return
// means no relevant example exists; the action is still surfaced without a
// moment rather than failing.
func linkMoment(results []evaluator.DimensionResult, action Action) *Moment {
	terms := actionTerms(action)
	if len(terms) == 0 {
		return nil
	}

	var best *evaluator.Example
	bestScore := 0
	for i := range results {
		for j := range results[i].Examples {
			example := &results[i].Examples[j]
			score := overlapScore(terms, example)
			if score > bestScore || (score == bestScore && score > 0 && best != nil && example.Timestamp < best.Timestamp) {
				best = example
				bestScore = score
			}
		}
	}
	if best == nil || bestScore == 0 {
		return nil
	}
	return &Moment{Speaker: best.Speaker, Quote: best.Quote, Timestamp: best.Timestamp}
}

// actionTerms tokenizes the action text plus the keywords of the win it
// advances.
func actionTerms(action Action) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, token := range tokenize(action.Text) {
		terms[token] = struct{}{}
	}
	if win, ok := findWin(action.Win); ok {
		for _, keyword := range win.Keywords {
			for _, token := range tokenize(keyword) {
				terms[token] = struct{}{}
			}
		}
	}
	return terms
}

func overlapScore(terms map[string]struct{}, example *evaluator.Example) int {
	score := 0
	for _, token := range tokenize(example.Quote + " " + example.Analysis) {
		if _, ok := terms[token]; ok {
			score++
		}
	}
	return score
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) <= 3 {
			continue
		}
		if _, ok := stopwords[field]; ok {
			continue
		}
		out = append(out, field)
	}
	return out
}
