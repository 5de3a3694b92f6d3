// Package consolidate synthesizes per-dimension evaluation results into one
// coaching view: a short narrative, the wins addressed and missed, and exactly
// one recommended action anchored to a transcript moment. Everything here is a
// pure function of already-evaluated content; no I/O and no model calls.
package consolidate

import (
	"github.com/mkhalidji/callcoach/internal/evaluator"
)

// Moment is the transcript evidence attached to the recommended action.
type Moment struct {
	Speaker   string  `json:"speaker,omitempty"`
	Quote     string  `json:"quote"`
	Timestamp float64 `json:"timestamp"`
}

// Action is the single recommendation surfaced to the rep. Only one action is
// ever returned so the rep is not juggling competing priorities.
type Action struct {
	Text   string  `json:"text"`
	Win    string  `json:"win"`
	Moment *Moment `json:"moment,omitempty"`
}

// Output is the consolidated coaching view over all successful dimensions.
type Output struct {
	Narrative     string   `json:"narrative"`
	WinsAddressed []string `json:"wins_addressed"`
	WinsMissed    []string `json:"wins_missed"`
	Action        Action   `json:"action"`
}

// Consolidate merges the successful dimension results. callType selects the
// call's primary win for action prioritization. Callers must skip
// consolidation entirely when no dimension succeeded; an empty result slice
// here still yields a usable fallback output.
func Consolidate(results []evaluator.DimensionResult, callType string) Output {
	signals := scanWins(results)
	sortSignals(signals)

	var addressed, missed []string
	for _, signal := range signals {
		switch {
		case signal.isAddressed():
			addressed = append(addressed, signal.win.Name)
		case signal.isMissed():
			missed = append(missed, signal.win.Name)
		}
	}

	action := selectAction(results, signals, primaryWinFor(callType))
	action.Moment = linkMoment(results, action)

	return Output{
		Narrative:     buildNarrative(results, signals),
		WinsAddressed: addressed,
		WinsMissed:    missed,
		Action:        action,
	}
}
