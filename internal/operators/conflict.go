package operators

import (
	"context"

	"github.com/aporia-systems/aporia/internal/aggregate"
	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/state"
)

// Conflict recomputes conflict from the current aggregate and, respecting
// the cooldown (invariant I4), updates the conflict penalty. It also starts
// the penalty-clear timer once conflict drops below theta_conflict_clear, so
// PenaltyDecay has a reference point to decay from.
func Conflict(_ context.Context, s state.State, p policy.Policy, clk clock.Clock) (state.State, state.RefinementRecord) {
	now := clk.Now()
	before := s
	beforeNu := s.Nu(p.PenaltyMode)

	out := s.Clone()
	agg := aggregate.Aggregate(out.Evidence, out.Target, out.Ctx, p, now)
	updateConflictPenalty(&out, agg, p, now)
	out.Touch(now, "Conflict")

	rec := newRecord("Conflict", now, before, beforeNu, out, p)
	rec.PenaltiesDelta = penaltiesDelta(before.Penalties, out.Penalties)
	return out, rec
}
