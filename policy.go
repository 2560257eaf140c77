package aporia

import (
	"time"

	"github.com/aporia-systems/aporia/internal/policy"
)

// Policy bundles the thresholds, weights, and rate constants a context
// applies when evaluating definedness and running refinement operators.
// Build one with NewPolicy; a Policy is immutable once built.
type Policy = policy.Policy

// PolicyOption configures a Policy under construction. Apply via NewPolicy.
type PolicyOption = policy.Option

// RelevanceFunc scores how relevant an evidence item is to a target within
// a context, in [0, 1]. The default policy returns 1 for everything.
type RelevanceFunc = policy.RelevanceFunc

// NewPolicy builds a Policy from the engine's documented defaults plus the
// given options, then validates it. A validation failure returns an
// *EngineError tagged KindInvalidPolicy.
func NewPolicy(opts ...PolicyOption) (Policy, error) {
	return policy.New(opts...)
}

func WithThetaEval(v float64) PolicyOption          { return policy.WithThetaEval(v) }
func WithThetaEvalRaw(v float64) PolicyOption        { return policy.WithThetaEvalRaw(v) }
func WithThetaNull(v float64) PolicyOption           { return policy.WithThetaNull(v) }
func WithThetaDefined(v float64) PolicyOption        { return policy.WithThetaDefined(v) }
func WithThetaConflict(v float64) PolicyOption       { return policy.WithThetaConflict(v) }
func WithThetaConflictClear(v float64) PolicyOption  { return policy.WithThetaConflictClear(v) }
func WithWeights(sem, ep, proc float64) PolicyOption { return policy.WithWeights(sem, ep, proc) }
func WithMaxConflictPenalty(v float64) PolicyOption  { return policy.WithMaxConflictPenalty(v) }
func WithConflictCooldown(d time.Duration) PolicyOption {
	return policy.WithConflictCooldown(d)
}
func WithPenaltyMode(m PenaltyCombine) PolicyOption { return policy.WithPenaltyMode(m) }
func WithPenaltyDecayEnabled(b bool) PolicyOption   { return policy.WithPenaltyDecayEnabled(b) }
func WithPenaltyDecayFactor(v float64) PolicyOption { return policy.WithPenaltyDecayFactor(v) }
func WithPenaltyClearWindow(d time.Duration) PolicyOption {
	return policy.WithPenaltyClearWindow(d)
}
func WithNotITrustFactor(v float64) PolicyOption { return policy.WithNotITrustFactor(v) }
func WithCoalitionTrustFactor(v float64) PolicyOption {
	return policy.WithCoalitionTrustFactor(v)
}
func WithUnknownTrustFactor(v float64) PolicyOption { return policy.WithUnknownTrustFactor(v) }
func WithDedupMode(m DedupMode) PolicyOption        { return policy.WithDedupMode(m) }
func WithRelevance(fn RelevanceFunc) PolicyOption   { return policy.WithRelevance(fn) }
func WithMassCurveK(k float64) PolicyOption         { return policy.WithMassCurveK(k) }
func WithDecayHalfLife(d time.Duration) PolicyOption {
	return policy.WithDecayHalfLife(d)
}
