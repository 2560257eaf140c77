package operators

import (
	"context"

	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
)

// Decay does not mutate evidence. It refreshes last_modified and recomputes
// nu_raw so that the aggregator's age-based decay of existing evidence is
// reflected in the state's stored definedness, even when no new evidence has
// arrived.
func Decay(ctx context.Context, s state.State, p policy.Policy, clk clock.Clock, sem semanticdef.Provider) (state.State, state.RefinementRecord, error) {
	now := clk.Now()
	before := s
	beforeNu := s.Nu(p.PenaltyMode)

	out := s.Clone()
	nuRaw, err := recomputeNuRaw(ctx, out, p, sem, now)
	if err != nil {
		return s, state.RefinementRecord{}, err
	}
	out.NuRaw = nuRaw
	out.Touch(now, "Decay")

	rec := newRecord("Decay", now, before, beforeNu, out, p)
	return out, rec, nil
}
