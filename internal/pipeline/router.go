// Package pipeline decides, per call, whether analysis runs through the
// legacy per-dimension pipeline or the unified pipeline that adds
// consolidation. Routing is deterministic so the same call always lands on
// the same side of the experiment for a given rollout percentage.
package pipeline

import (
	"hash/fnv"

	"github.com/mkhalidji/callcoach/internal/common"
)

// Variant identifies which analysis pipeline a call is routed to.
type Variant string

const (
	// VariantLegacy runs per-dimension evaluation only.
	VariantLegacy Variant = "legacy"
	// VariantUnified adds the consolidation layer on top of the
	// per-dimension results.
	VariantUnified Variant = "unified"
)

// Router assigns calls to a pipeline variant by hashing the call identifier
// into one of 100 buckets and comparing against the rollout percentage.
type Router struct {
	percent int
}

// NewRouter clamps percent into [0,100]. 0 routes everything to legacy, 100
// everything to unified.
func NewRouter(percent int) *Router {
	if percent < 0 {
		common.Logger().Warn("pipeline: rollout percent below zero, using 0", "percent", percent)
		percent = 0
	}
	if percent > 100 {
		common.Logger().Warn("pipeline: rollout percent above 100, using 100", "percent", percent)
		percent = 100
	}
	return &Router{percent: percent}
}

// Percent reports the configured rollout percentage.
func (r *Router) Percent() int {
	if r == nil {
		return 0
	}
	return r.percent
}

// Select returns the variant for a call. The unified pipeline is strictly
// additive, so a nil or zero-percent router always answers legacy.
func (r *Router) Select(callID string) Variant {
	if r == nil || r.percent <= 0 {
		return VariantLegacy
	}
	if r.percent >= 100 {
		return VariantUnified
	}
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(callID))
	if int(hasher.Sum32()%100) < r.percent {
		return VariantUnified
	}
	return VariantLegacy
}
