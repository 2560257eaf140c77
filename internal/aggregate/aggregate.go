// Package aggregate combines an evidence set into the quantities the
// definedness calculus is built from: positive/negative epistemic mass,
// conflict, and the Def_ep/Def_proc definedness components.
package aggregate

import (
	"math"
	"time"

	"github.com/aporia-systems/aporia/internal/evidence"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/types"
)

// Result is the aggregator's output, aggregate(evidence_set, target,
// context, policy, now) -> {pos_mass, neg_mass, conflict, Def_ep, Def_proc}.
type Result struct {
	PosMass  float64
	NegMass  float64
	Conflict float64
	DefEp    float64
	DefProc  float64
}

// Decay returns the age-based weight multiplier for an item observed elapsed
// ago, under an exponential half-life curve: decay(0) = 1, monotone
// non-increasing, decay(halfLife) = 0.5.
func Decay(elapsed time.Duration, halfLife time.Duration) float64 {
	if elapsed <= 0 {
		return 1
	}
	if halfLife <= 0 {
		return 0
	}
	return math.Pow(0.5, float64(elapsed)/float64(halfLife))
}

// saturating implements the policy-configured mass-to-definedness curve,
// Def = 1 - exp(-k*mass).
func saturating(mass float64, k float64) float64 {
	if mass <= 0 {
		return 0
	}
	return 1 - math.Exp(-k*mass)
}

// Aggregate computes Result for set, restricted to evidence relevant to
// target within ctx, as of now. Definitional items are excluded: they
// contribute to Def_sem (see the semanticdef package), not here.
func Aggregate(set *evidence.Set, target types.TargetID, ctx types.ContextID, p policy.Policy, now time.Time) Result {
	var posMass, negMass, procMass float64

	for _, e := range set.ByKind(types.KindEpistemic) {
		relevance := p.Relevance(e, target, ctx)
		elapsed := now.Sub(time.Unix(0, e.Time))
		w := e.Trust * relevance * Decay(elapsed, p.DecayHalfLife)
		signed := e.Valence * w
		if signed > 0 {
			posMass += signed
		} else if signed < 0 {
			negMass += -signed
		}
	}

	for _, e := range set.ByKind(types.KindProcedural) {
		relevance := p.Relevance(e, target, ctx)
		elapsed := now.Sub(time.Unix(0, e.Time))
		w := e.Trust * relevance * Decay(elapsed, p.DecayHalfLife)
		procMass += math.Abs(w)
	}

	var conflict float64
	if posMass+negMass > 0 {
		conflict = 2 * math.Min(posMass, negMass) / (posMass + negMass)
	}

	return Result{
		PosMass:  posMass,
		NegMass:  negMass,
		Conflict: conflict,
		DefEp:    saturating(posMass+negMass, p.MassCurveK),
		DefProc:  saturating(procMass, p.MassCurveK),
	}
}

// CombineDef folds the three definedness components into Def via the
// convex combination Def = w_sem*Def_sem + w_ep*Def_ep + w_proc*Def_proc.
func CombineDef(defSem, defEp, defProc float64, p policy.Policy) float64 {
	return p.WSem*defSem + p.WEp*defEp + p.WProc*defProc
}

// NuRaw returns 1 - Def, the structural definedness score before penalties.
func NuRaw(def float64) float64 {
	return 1 - def
}
