package consolidate

import (
	"fmt"
	"strings"

	"github.com/mkhalidji/callcoach/internal/evaluator"
)

// buildNarrative produces a 2-3 sentence summary naming the most significant
// addressed and missed wins. Signals must already be sorted by weight.
func buildNarrative(results []evaluator.DimensionResult, signals []winSignal) string {
	var sentences []string

	if top, ok := topAddressed(signals); ok {
		sentences = append(sentences,
			fmt.Sprintf("The call's strongest outcome was advancing %s.", winTitle(top.win.Name)))
	} else {
		sentences = append(sentences, "No coaching wins were clearly advanced on this call.")
	}

	if top, ok := topMissed(signals); ok {
		sentences = append(sentences,
			fmt.Sprintf("The most significant gap was %s, which went unaddressed.", winTitle(top.win.Name)))
	}

	if len(results) > 0 {
		total := 0
		for _, result := range results {
			total += result.Score
		}
		sentences = append(sentences,
			fmt.Sprintf("The rep averaged %d across %d evaluated dimensions.", total/len(results), len(results)))
	}

	if len(sentences) > 3 {
		sentences = sentences[:3]
	}
	return strings.Join(sentences, " ")
}

func topAddressed(signals []winSignal) (winSignal, bool) {
	for _, signal := range signals {
		if signal.isAddressed() {
			return signal, true
		}
	}
	return winSignal{}, false
}

func topMissed(signals []winSignal) (winSignal, bool) {
	for _, signal := range signals {
		if signal.isMissed() {
			return signal, true
		}
	}
	return winSignal{}, false
}
