package rubric

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkhalidji/callcoach/internal/catalog"
	"github.com/mkhalidji/callcoach/internal/common"
)

// Dimensions evaluated by default.
const (
	DimensionDiscovery         = "discovery"
	DimensionObjectionHandling = "objection_handling"
	DimensionProductKnowledge  = "product_knowledge"
	DimensionEngagement        = "engagement"
)

// DefaultDimensions returns the standard four coaching dimensions.
func DefaultDimensions() []string {
	return []string{
		DimensionDiscovery,
		DimensionObjectionHandling,
		DimensionProductKnowledge,
		DimensionEngagement,
	}
}

var seedRubrics = []catalog.Rubric{
	{
		Dimension: DimensionDiscovery,
		Version:   "1.0",
		Criteria: "Evaluate how well the rep uncovered the buyer's situation: open-ended questions, " +
			"probing into pain points, quantifying impact, and confirming the decision process and timeline.",
		ScoringGuide: "90-100 exceptional discovery with quantified pain and confirmed process; " +
			"70-89 solid questioning with minor gaps; 40-69 surface-level questions only; " +
			"0-39 little or no discovery attempted.",
		Examples: "Strong: \"What happens to the team's quota if this stays broken through Q4?\" " +
			"Weak: jumping to a feature demo before asking a single question.",
	},
	{
		Dimension: DimensionObjectionHandling,
		Version:   "1.0",
		Criteria: "Evaluate how the rep surfaced and responded to objections: acknowledging the concern, " +
			"clarifying its root cause, responding with evidence, and confirming the objection was resolved.",
		ScoringGuide: "90-100 objections welcomed and fully resolved; 70-89 addressed but not confirmed resolved; " +
			"40-69 deflected or answered superficially; 0-39 ignored or argued with the buyer.",
		Examples: "Strong: \"It sounds like the real worry is migration effort - can I show you how long " +
			"the last customer of your size took?\" Weak: \"No, that's not a problem.\"",
	},
	{
		Dimension: DimensionProductKnowledge,
		Version:   "1.0",
		Criteria: "Evaluate accuracy and relevance of product claims: correct capability descriptions, " +
			"tying capabilities to the buyer's stated needs, and admitting unknowns rather than guessing.",
		ScoringGuide: "90-100 precise, need-linked answers; 70-89 accurate but generic; " +
			"40-69 vague or partially wrong; 0-39 materially incorrect claims.",
		Examples: "Strong: linking the audit-log capability to the buyer's compliance deadline. " +
			"Weak: promising an integration that does not exist.",
	},
	{
		Dimension: DimensionEngagement,
		Version:   "1.0",
		Criteria: "Evaluate conversational balance and momentum: talk-time ratio, checking in with the buyer, " +
			"building on the buyer's answers, and securing a concrete next step.",
		ScoringGuide: "90-100 balanced dialogue ending in a committed next step; 70-89 engaged but rep-heavy; " +
			"40-69 monologue with token check-ins; 0-39 buyer disengaged or next step left open.",
		Examples: "Strong: \"Does Thursday work for the technical deep-dive with your architect?\" " +
			"Weak: \"I'll send some materials over\" with no date.",
	},
}

// Seed installs version 1.0 rubrics for any default dimension that has no
// rubric at all. Dimensions that already carry versions are left untouched, so
// operator-published rubrics always win.
func Seed(ctx context.Context, store catalog.RubricStore) error {
	logger := common.Logger()
	var errs error
	for _, seed := range seedRubrics {
		existing, err := store.ListRubrics(ctx, seed.Dimension)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("rubric: list %s: %w", seed.Dimension, err))
			continue
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := store.PublishRubric(ctx, seed); err != nil {
			errs = errors.Join(errs, fmt.Errorf("rubric: seed %s: %w", seed.Dimension, err))
			continue
		}
		logger.Info("rubric: seeded dimension", "dimension", seed.Dimension, "version", seed.Version)
	}
	return errs
}
