// Package operators implements the eight pure refinement operators:
// Incorporate, NegDefine, Merge, Recontextualize, Conflict, PenaltyDecay,
// Split, and Decay. Each is total on well-formed inputs and returns a new
// State plus a RefinementRecord describing what changed; none mutates its
// arguments.
package operators

import (
	"context"
	"log/slog"
	"time"

	"github.com/aporia-systems/aporia/internal/aggregate"
	"github.com/aporia-systems/aporia/internal/apperr"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// updateConflictPenalty applies the Conflict operator's penalty logic
// (spec.md section 4.6) to out in place: respecting the cooldown, it raises
// the conflict penalty when agg.Conflict crosses theta_conflict, or starts
// the penalty-clear timer once it drops below theta_conflict_clear. Shared
// by the standalone Conflict operator and by Incorporate, which applies the
// same update without recording a second history entry (spec.md: "Incorporate
// calls Conflict at the end to maintain invariant I4" is a single mutating
// application, not two).
func updateConflictPenalty(out *state.State, agg aggregate.Result, p policy.Policy, now time.Time) {
	cooldownElapsed := out.Meta.ConflictLastApplied == nil || now.Sub(*out.Meta.ConflictLastApplied) >= p.ConflictCooldown

	if agg.Conflict >= p.ThetaConflict && cooldownElapsed {
		newPenalty := agg.Conflict * p.MaxConflictPenalty
		if newPenalty > p.MaxConflictPenalty {
			newPenalty = p.MaxConflictPenalty
		}
		out.Penalties[types.PenaltyConflict] = newPenalty
		out.Meta.ConflictLastApplied = &now
		out.Meta.PenaltyClearStart = nil
		return
	}

	if agg.Conflict < p.ThetaConflictClear {
		if _, hasPenalty := out.Penalties[types.PenaltyConflict]; hasPenalty && out.Meta.PenaltyClearStart == nil {
			out.Meta.PenaltyClearStart = &now
		}
	}
}

// SystemAgent is the sentinel source NegDefine attributes synthesized
// constraints to when the caller supplies none.
const SystemAgent types.AgentID = "system:negdefine"

// recomputeNuRaw recomputes Def_sem/Def_ep/Def_proc from s's current
// evidence set and folds them into Def, satisfying invariant I6
// (nu_raw = 1 - Def after any operator that recomputes definedness).
func recomputeNuRaw(ctx context.Context, s state.State, p policy.Policy, sem semanticdef.Provider, now time.Time) (float64, error) {
	agg := aggregate.Aggregate(s.Evidence, s.Target, s.Ctx, p, now)
	defSem, err := sem.SemanticDefinedness(ctx, s, s.Ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindProviderFailure, "Def_sem", err)
	}
	if defSem < 0 || defSem > 1 {
		slog.Warn("semanticdef: provider returned out-of-range value, clamping",
			"target", s.Target, "ctx", s.Ctx, "value", defSem)
		if defSem < 0 {
			defSem = 0
		} else {
			defSem = 1
		}
	}
	def := aggregate.CombineDef(defSem, agg.DefEp, agg.DefProc, p)
	return aggregate.NuRaw(def), nil
}

// newRecord seeds a RefinementRecord's before/after nu fields from before and
// s, the operator's output state. Callers fill in the rest.
func newRecord(op string, now time.Time, before state.State, beforeNu float64, s state.State, p policy.Policy) state.RefinementRecord {
	return state.RefinementRecord{
		Operator:    op,
		Time:        now,
		Target:      s.Target,
		Ctx:         s.Ctx,
		BeforeNuRaw: before.NuRaw,
		BeforeNu:    beforeNu,
		AfterNuRaw:  s.NuRaw,
		AfterNu:     s.Nu(p.PenaltyMode),
	}
}

// penaltiesDelta computes the per-source delta between two penalty maps, for
// a RefinementRecord's PenaltiesDelta field.
func penaltiesDelta(before, after map[types.PenaltySource]float64) map[types.PenaltySource]float64 {
	delta := map[types.PenaltySource]float64{}
	for k, v := range after {
		delta[k] = v - before[k]
	}
	for k, v := range before {
		if _, ok := after[k]; !ok {
			delta[k] = -v
		}
	}
	for k, v := range delta {
		if v == 0 {
			delete(delta, k)
		}
	}
	return delta
}
