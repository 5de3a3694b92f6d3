package consolidate

import (
	"github.com/mkhalidji/callcoach/internal/evaluator"
)

// fallbackActionText is surfaced when no dimension produced any action items.
const fallbackActionText = "Schedule a focused follow-up conversation and confirm the buyer's next step before ending the call."

// selectAction chooses exactly one action item across all dimensions, in
// priority order: unblock a missed win, advance the call's primary win,
// protect an at-risk win. When actions exist but none matches a tracked win,
// the first action in dimension order is used; when no actions exist at all,
// a generic fallback is returned.
func selectAction(results []evaluator.DimensionResult, signals []winSignal, primary Win) Action {
	actions := collectActions(results)
	if len(actions) == 0 {
		return Action{Text: fallbackActionText, Win: primary.Name}
	}

	// Highest-weight missed win with a matching action unblocks the most
	// valuable stalled milestone.
	for _, signal := range signals {
		if !signal.isMissed() {
			continue
		}
		for _, action := range actions {
			if matchesWin(signal.win, action) {
				return Action{Text: action, Win: signal.win.Name}
			}
		}
	}

	for _, action := range actions {
		if matchesWin(primary, action) {
			return Action{Text: action, Win: primary.Name}
		}
	}

	for _, signal := range signals {
		if !signal.isAtRisk() {
			continue
		}
		for _, action := range actions {
			if matchesWin(signal.win, action) {
				return Action{Text: action, Win: signal.win.Name}
			}
		}
	}

	return Action{Text: actions[0], Win: primary.Name}
}

func collectActions(results []evaluator.DimensionResult) []string {
	var actions []string
	seen := make(map[string]struct{})
	for _, result := range results {
		for _, action := range result.ActionItems {
			if _, ok := seen[action]; ok {
				continue
			}
			seen[action] = struct{}{}
			actions = append(actions, action)
		}
	}
	return actions
}
