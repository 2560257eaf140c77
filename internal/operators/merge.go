package operators

import (
	"context"
	"fmt"

	"github.com/aporia-systems/aporia/internal/aggregate"
	"github.com/aporia-systems/aporia/internal/apperr"
	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// Merge unions stateB's evidence into a copy of stateA (the merged state
// keeps stateA's (target, context) identity), recomputes definedness, and
// adds a merge_rupture penalty — bounded by MaxConflictPenalty — if the
// union reveals conflict at or above theta_conflict that neither parent
// independently exhibited. Metadata histories are concatenated with a merge
// marker identifying the absorbed state's context.
func Merge(ctx context.Context, stateA, stateB state.State, p policy.Policy, clk clock.Clock, sem semanticdef.Provider) (state.State, state.RefinementRecord, error) {
	if stateA.Target != stateB.Target {
		return stateA, state.RefinementRecord{}, apperr.New(apperr.KindDomainMisuse, "Target",
			fmt.Sprintf("cannot merge states for different targets %q and %q", stateA.Target, stateB.Target))
	}

	now := clk.Now()
	before := stateA
	beforeNu := stateA.Nu(p.PenaltyMode)

	aggA := aggregate.Aggregate(stateA.Evidence, stateA.Target, stateA.Ctx, p, now)
	aggB := aggregate.Aggregate(stateB.Evidence, stateB.Target, stateB.Ctx, p, now)

	out := stateA.Clone()
	out.Evidence = out.Evidence.Union(stateB.Evidence)

	aggMerged := aggregate.Aggregate(out.Evidence, out.Target, out.Ctx, p, now)

	nuRaw, err := recomputeNuRaw(ctx, out, p, sem, now)
	if err != nil {
		return stateA, state.RefinementRecord{}, err
	}
	out.NuRaw = nuRaw

	parentConflictHigh := aggA.Conflict >= p.ThetaConflict || aggB.Conflict >= p.ThetaConflict
	if aggMerged.Conflict >= p.ThetaConflict && !parentConflictHigh {
		rupture := aggMerged.Conflict * p.MaxConflictPenalty
		if rupture > p.MaxConflictPenalty {
			rupture = p.MaxConflictPenalty
		}
		out.Penalties[types.PenaltyMergeRupture] = rupture
	}

	marker := fmt.Sprintf("merge(%s)", stateB.Ctx)
	out.Meta.History = append(out.Meta.History, stateB.Meta.History...)
	out.Meta.Crossings = append(out.Meta.Crossings, stateB.Meta.Crossings...)
	out.Touch(now, marker)

	rec := newRecord("Merge", now, before, beforeNu, out, p)
	rec.PenaltiesDelta = penaltiesDelta(before.Penalties, out.Penalties)
	rec.Notes = marker
	return out, rec, nil
}
