// Package policy holds the per-context tunables that govern how evidence
// aggregates into definedness, how penalties accumulate and decay, and how
// the boundary transform discounts trust. A Policy is immutable once built;
// operators never mutate one, only read it.
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/aporia-systems/aporia/internal/apperr"
	"github.com/aporia-systems/aporia/internal/types"
)

// RelevanceFunc scores how relevant an evidence item is to a target within a
// context, in [0, 1]. Hosts that want a trivial relevance model can ignore
// the target/context and return 1 for everything; the default policy does
// exactly that.
type RelevanceFunc func(item types.EvidenceItem, target types.TargetID, ctx types.ContextID) float64

// Policy bundles the thresholds, weights, and rate constants a context
// applies when evaluating definedness and running refinement operators.
// Field names mirror the symbols used in the calculus: theta_* thresholds
// gate License and Conflict behavior, w_* weights combine the three
// definedness components, and the remaining fields tune penalty and decay
// dynamics.
type Policy struct {
	ThetaEval          float64
	ThetaEvalRaw       float64
	ThetaNull          float64
	ThetaDefined       float64
	ThetaConflict      float64
	ThetaConflictClear float64

	WSem  float64
	WEp   float64
	WProc float64

	MaxConflictPenalty float64
	ConflictCooldown   time.Duration

	PenaltyMode         types.PenaltyCombine
	PenaltyDecayEnabled bool
	PenaltyDecayFactor  float64
	PenaltyClearWindow  time.Duration

	NotITrustFactor      float64
	CoalitionTrustFactor float64
	UnknownTrustFactor   float64

	DedupMode types.DedupMode

	Relevance RelevanceFunc

	// MassCurveK is the saturation rate of the Def_ep/Def_proc curve,
	// 1 - exp(-k*mass). Chosen so a mass of 2.0 yields Def ~= 0.85 (see the
	// worked example in the aggregation package's tests).
	MassCurveK float64

	// DecayHalfLife is the half-life of the aggregator's
	// 0.5^(elapsed/halfLife) evidence-age falloff, applied whenever any
	// operator recomputes nu_raw.
	DecayHalfLife time.Duration
}

// Option configures a Policy under construction.
type Option func(*Policy)

func WithThetaEval(v float64) Option         { return func(p *Policy) { p.ThetaEval = v } }
func WithThetaEvalRaw(v float64) Option      { return func(p *Policy) { p.ThetaEvalRaw = v } }
func WithThetaNull(v float64) Option         { return func(p *Policy) { p.ThetaNull = v } }
func WithThetaDefined(v float64) Option      { return func(p *Policy) { p.ThetaDefined = v } }
func WithThetaConflict(v float64) Option     { return func(p *Policy) { p.ThetaConflict = v } }
func WithThetaConflictClear(v float64) Option {
	return func(p *Policy) { p.ThetaConflictClear = v }
}

// WithWeights sets the three definedness-component weights. They must sum to
// 1.0 (checked by Validate, not here, so callers can set them one at a time
// via With* and validate once at the end).
func WithWeights(sem, ep, proc float64) Option {
	return func(p *Policy) { p.WSem, p.WEp, p.WProc = sem, ep, proc }
}

func WithMaxConflictPenalty(v float64) Option   { return func(p *Policy) { p.MaxConflictPenalty = v } }
func WithConflictCooldown(d time.Duration) Option {
	return func(p *Policy) { p.ConflictCooldown = d }
}
func WithPenaltyMode(m types.PenaltyCombine) Option { return func(p *Policy) { p.PenaltyMode = m } }
func WithPenaltyDecayEnabled(b bool) Option {
	return func(p *Policy) { p.PenaltyDecayEnabled = b }
}
func WithPenaltyDecayFactor(v float64) Option {
	return func(p *Policy) { p.PenaltyDecayFactor = v }
}
func WithPenaltyClearWindow(d time.Duration) Option {
	return func(p *Policy) { p.PenaltyClearWindow = d }
}
func WithNotITrustFactor(v float64) Option { return func(p *Policy) { p.NotITrustFactor = v } }
func WithCoalitionTrustFactor(v float64) Option {
	return func(p *Policy) { p.CoalitionTrustFactor = v }
}
func WithUnknownTrustFactor(v float64) Option {
	return func(p *Policy) { p.UnknownTrustFactor = v }
}
func WithDedupMode(m types.DedupMode) Option { return func(p *Policy) { p.DedupMode = m } }
func WithRelevance(fn RelevanceFunc) Option  { return func(p *Policy) { p.Relevance = fn } }
func WithMassCurveK(k float64) Option        { return func(p *Policy) { p.MassCurveK = k } }
func WithDecayHalfLife(d time.Duration) Option {
	return func(p *Policy) { p.DecayHalfLife = d }
}

func alwaysRelevant(types.EvidenceItem, types.TargetID, types.ContextID) float64 { return 1 }

// defaults returns the baseline Policy before any Option is applied.
func defaults() Policy {
	return Policy{
		ThetaEval:          0.4,
		ThetaEvalRaw:       0.5,
		ThetaNull:          0.7,
		ThetaDefined:       0.3,
		ThetaConflict:      0.3,
		ThetaConflictClear: 0.15,

		WSem:  0.4,
		WEp:   0.35,
		WProc: 0.25,

		MaxConflictPenalty: 0.2,
		ConflictCooldown:   1 * time.Hour,

		PenaltyMode:         types.CombineMax,
		PenaltyDecayEnabled: true,
		PenaltyDecayFactor:  0.9,
		PenaltyClearWindow:  24 * time.Hour,

		NotITrustFactor:      0.5,
		CoalitionTrustFactor: 0.75,
		UnknownTrustFactor:   0.25,

		DedupMode: types.DedupStrict,
		Relevance: alwaysRelevant,

		MassCurveK:    0.9486, // -ln(0.15)/2.0, chosen so mass 2.0 yields Def ~= 0.85 (spec worked example S1)
		DecayHalfLife: 72 * time.Hour,
	}
}

// New builds a Policy from defaults and the given options, then validates it.
func New(opts ...Option) (Policy, error) {
	p := defaults()
	for _, opt := range opts {
		opt(&p)
	}
	if p.Relevance == nil {
		p.Relevance = alwaysRelevant
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that every threshold lies in [0, 1], the definedness
// weights sum to 1.0 within tolerance, every duration and MassCurveK is
// positive, and PenaltyDecayFactor lies in [0, 1].
// It accumulates every violation rather than stopping at the first, matching
// the teacher's collect-then-report config validation style.
func (p Policy) Validate() error {
	var errs []error

	checkUnit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("policy: %s must be in [0, 1], got %v", name, v))
		}
	}
	checkUnit("ThetaEval", p.ThetaEval)
	checkUnit("ThetaEvalRaw", p.ThetaEvalRaw)
	checkUnit("ThetaNull", p.ThetaNull)
	checkUnit("ThetaDefined", p.ThetaDefined)
	checkUnit("ThetaConflict", p.ThetaConflict)
	checkUnit("ThetaConflictClear", p.ThetaConflictClear)
	checkUnit("WSem", p.WSem)
	checkUnit("WEp", p.WEp)
	checkUnit("WProc", p.WProc)
	checkUnit("MaxConflictPenalty", p.MaxConflictPenalty)
	checkUnit("NotITrustFactor", p.NotITrustFactor)
	checkUnit("CoalitionTrustFactor", p.CoalitionTrustFactor)
	checkUnit("UnknownTrustFactor", p.UnknownTrustFactor)

	if sum := p.WSem + p.WEp + p.WProc; sum < 0.999 || sum > 1.001 {
		errs = append(errs, fmt.Errorf("policy: WSem+WEp+WProc must sum to 1.0, got %v", sum))
	}
	if p.ThetaConflictClear > p.ThetaConflict {
		errs = append(errs, errors.New("policy: ThetaConflictClear must not exceed ThetaConflict"))
	}
	if p.ThetaDefined > p.ThetaNull {
		errs = append(errs, errors.New("policy: ThetaDefined must not exceed ThetaNull"))
	}
	if p.ConflictCooldown <= 0 {
		errs = append(errs, errors.New("policy: ConflictCooldown must be positive"))
	}
	if p.PenaltyClearWindow <= 0 {
		errs = append(errs, errors.New("policy: PenaltyClearWindow must be positive"))
	}
	if p.PenaltyDecayFactor < 0 || p.PenaltyDecayFactor > 1 {
		errs = append(errs, fmt.Errorf("policy: PenaltyDecayFactor must be in [0, 1], got %v", p.PenaltyDecayFactor))
	}
	if p.MassCurveK <= 0 {
		errs = append(errs, errors.New("policy: MassCurveK must be positive"))
	}
	if p.DecayHalfLife <= 0 {
		errs = append(errs, errors.New("policy: DecayHalfLife must be positive"))
	}
	if !p.PenaltyMode.Valid() {
		errs = append(errs, fmt.Errorf("policy: unknown PenaltyMode %q", p.PenaltyMode))
	}

	joined := errors.Join(errs...)
	if joined == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindInvalidPolicy, "", joined)
}
