package operators

import (
	"context"
	"fmt"

	"github.com/aporia-systems/aporia/internal/aggregate"
	"github.com/aporia-systems/aporia/internal/apperr"
	"github.com/aporia-systems/aporia/internal/boundary"
	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// Recontextualize creates a new state bound to newCtx with the same
// evidence set, appending a crossing record. If newRoleFn differs from the
// context the evidence was ingested under, trust is re-derived from each
// item's stored PreTransformTrust (never by replaying Incorporate). If
// scopeSizeDelta is positive (the new context's scope is larger), a
// scope_expansion penalty proportional to the delta is added, bounded by
// MaxConflictPenalty.
func Recontextualize(ctx context.Context, s state.State, newCtx types.ContextID, newRoleFn types.RoleFunc, scopeSizeDelta float64, p policy.Policy, clk clock.Clock, sem semanticdef.Provider) (state.State, state.RefinementRecord, error) {
	if newCtx == s.Ctx {
		return s, state.RefinementRecord{}, apperr.New(apperr.KindDomainMisuse, "newCtx",
			fmt.Sprintf("cannot recontextualize %q to its own context", newCtx))
	}

	now := clk.Now()
	before := s
	beforeNu := s.Nu(p.PenaltyMode)

	out := s.Clone()
	fromCtx := out.Ctx
	out.Ctx = newCtx

	items := out.Evidence.All()
	reEvidence := out.Evidence.Filter(func(types.EvidenceItem) bool { return false })
	for _, item := range items {
		re := boundary.Recontextualize(item, newRoleFn, p)
		var ok bool
		reEvidence, ok = reEvidence.Insert(re)
		_ = ok // re-insertion of already-owned items always succeeds under any dedup mode
	}
	out.Evidence = reEvidence

	out.Meta.Crossings = append(out.Meta.Crossings, state.Crossing{From: fromCtx, To: newCtx, Time: now})

	if scopeSizeDelta > 0 {
		expansion := scopeSizeDelta * p.MaxConflictPenalty
		if expansion > p.MaxConflictPenalty {
			expansion = p.MaxConflictPenalty
		}
		out.Penalties[types.PenaltyScopeExpansion] = expansion
	}

	nuRaw, err := recomputeNuRaw(ctx, out, p, sem, now)
	if err != nil {
		return s, state.RefinementRecord{}, err
	}
	out.NuRaw = nuRaw

	agg := aggregate.Aggregate(out.Evidence, out.Target, out.Ctx, p, now)
	updateConflictPenalty(&out, agg, p, now)
	out.Touch(now, "Recontextualize")

	rec := newRecord("Recontextualize", now, before, beforeNu, out, p)
	rec.PenaltiesDelta = penaltiesDelta(before.Penalties, out.Penalties)
	return out, rec, nil
}
