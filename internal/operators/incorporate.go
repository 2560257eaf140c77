package operators

import (
	"context"

	"github.com/aporia-systems/aporia/internal/aggregate"
	"github.com/aporia-systems/aporia/internal/boundary"
	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/evidence"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// Incorporate applies the boundary transform to each item in newEvidence,
// inserts it into the state's evidence set (respecting dedup), recomputes
// Def_ep/Def_proc/Def_sem and nu_raw from the full set, then applies the
// Conflict operator's penalty update to maintain invariant I4.
func Incorporate(ctx context.Context, s state.State, newEvidence []types.EvidenceItem, p policy.Policy, clk clock.Clock, roleFn types.RoleFunc, sem semanticdef.Provider) (state.State, state.RefinementRecord, error) {
	now := clk.Now()
	before := s
	beforeNu := s.Nu(p.PenaltyMode)

	for _, item := range newEvidence {
		if err := evidence.Validate(item); err != nil {
			return s, state.RefinementRecord{}, err
		}
	}

	out := s.Clone()
	var added []types.EvidenceID
	for _, item := range newEvidence {
		transformed := boundary.Apply(item, roleFn, p)
		var ok bool
		out.Evidence, ok = out.Evidence.Insert(transformed)
		if ok {
			added = append(added, transformed.ID)
		}
	}

	nuRaw, err := recomputeNuRaw(ctx, out, p, sem, now)
	if err != nil {
		return s, state.RefinementRecord{}, err
	}
	out.NuRaw = nuRaw

	agg := aggregate.Aggregate(out.Evidence, out.Target, out.Ctx, p, now)
	updateConflictPenalty(&out, agg, p, now)
	out.Touch(now, "Incorporate")

	rec := newRecord("Incorporate", now, before, beforeNu, out, p)
	rec.EvidenceAdded = added
	rec.PenaltiesDelta = penaltiesDelta(before.Penalties, out.Penalties)

	return out, rec, nil
}
