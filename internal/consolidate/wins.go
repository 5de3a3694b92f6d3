package consolidate

import (
	"sort"
	"strings"

	"github.com/mkhalidji/callcoach/internal/evaluator"
)

// Win is one sales-process milestone in the fixed coaching taxonomy. Weight
// expresses coaching priority; higher-weight wins dominate tie-breaks.
type Win struct {
	Name     string
	Weight   int
	Keywords []string
}

var taxonomy = []Win{
	{Name: "budget_confirmed", Weight: 5, Keywords: []string{"budget", "pricing", "price", "cost", "spend", "procurement"}},
	{Name: "decision_maker_engaged", Weight: 4, Keywords: []string{"decision maker", "decision-maker", "stakeholder", "champion", "executive", "economic buyer", "sign-off"}},
	{Name: "pain_identified", Weight: 4, Keywords: []string{"pain", "problem", "challenge", "struggle", "impact", "blocker", "frustration"}},
	{Name: "next_step_secured", Weight: 3, Keywords: []string{"next step", "follow-up", "follow up", "schedule", "meeting", "calendar", "deep-dive"}},
	{Name: "value_articulated", Weight: 3, Keywords: []string{"value", "roi", "benefit", "outcome", "savings", "revenue"}},
	{Name: "objection_resolved", Weight: 2, Keywords: []string{"objection", "concern", "pushback", "hesitation", "worry"}},
}

// Taxonomy returns a copy of the fixed win taxonomy.
func Taxonomy() []Win {
	out := make([]Win, len(taxonomy))
	copy(out, taxonomy)
	return out
}

func findWin(name string) (Win, bool) {
	for _, win := range taxonomy {
		if win.Name == name {
			return win, true
		}
	}
	return Win{}, false
}

// primaryWins maps a call type to the win that call is fundamentally trying
// to advance.
var primaryWins = map[string]string{
	"discovery":   "pain_identified",
	"demo":        "value_articulated",
	"negotiation": "budget_confirmed",
	"closing":     "next_step_secured",
}

func primaryWinFor(callType string) Win {
	name, ok := primaryWins[strings.ToLower(strings.TrimSpace(callType))]
	if !ok {
		name = primaryWins["discovery"]
	}
	win, _ := findWin(name)
	return win
}

// winSignal tallies how strongly the dimension results speak for and against
// one win.
type winSignal struct {
	win       Win
	addressed int
	missed    int
}

// addressed: positive findings mention the win's topic. missed: improvement
// findings or action items mention it, meaning coaching is still needed there.
func scanWins(results []evaluator.DimensionResult) []winSignal {
	signals := make([]winSignal, len(taxonomy))
	for i, win := range taxonomy {
		signals[i].win = win
	}
	for _, result := range results {
		for i := range signals {
			win := signals[i].win
			for _, s := range result.Strengths {
				if matchesWin(win, s) {
					signals[i].addressed++
				}
			}
			for _, ex := range result.Examples {
				if matchesWin(win, ex.Analysis) || matchesWin(win, ex.Quote) {
					signals[i].addressed++
				}
			}
			for _, imp := range result.Improvements {
				if matchesWin(win, imp) {
					signals[i].missed++
				}
			}
			for _, action := range result.ActionItems {
				if matchesWin(win, action) {
					signals[i].missed++
				}
			}
		}
	}
	return signals
}

func matchesWin(win Win, text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range win.Keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

func (s winSignal) isAddressed() bool {
	return s.addressed > 0 && s.addressed >= s.missed
}

func (s winSignal) isMissed() bool {
	return s.missed > 0 && s.addressed == 0
}

func (s winSignal) isAtRisk() bool {
	return s.addressed > 0 && s.missed > 0
}

// sortSignals orders by weight descending then name ascending so equal-weight
// ties resolve deterministically.
func sortSignals(signals []winSignal) {
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].win.Weight != signals[j].win.Weight {
			return signals[i].win.Weight > signals[j].win.Weight
		}
		return signals[i].win.Name < signals[j].win.Name
	})
}

func winTitle(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
