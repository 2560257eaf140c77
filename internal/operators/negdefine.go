package operators

import (
	"context"

	"github.com/aporia-systems/aporia/internal/clock"
	"github.com/aporia-systems/aporia/internal/evidence"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// Constraint is a single definitional statement NegDefine synthesizes into
// evidence. Src defaults to SystemAgent and Increment to
// semanticdef.DefaultConstraintIncrement when left zero.
type Constraint struct {
	Claim     string
	Src       types.AgentID
	Increment float64
}

// NegDefine synthesizes each constraint as a definitional evidence item
// (valence 0, trust 1.0), inserts it, and increments the state's
// constraint_coverage tag by the constraint's increment (bounded at 1.0),
// then recomputes nu_raw.
func NegDefine(ctx context.Context, s state.State, constraints []Constraint, p policy.Policy, clk clock.Clock, sem semanticdef.Provider) (state.State, state.RefinementRecord, error) {
	now := clk.Now()
	before := s
	beforeNu := s.Nu(p.PenaltyMode)

	out := s.Clone()
	var added []types.EvidenceID
	for _, c := range constraints {
		src := c.Src
		if src == "" {
			src = SystemAgent
		}
		increment := c.Increment
		if increment == 0 {
			increment = semanticdef.DefaultConstraintIncrement
		}

		bucket := evidence.TimeBucket(now, 0)
		id := evidence.DeriveID(types.KindDefinitional, c.Claim, src, bucket)
		item := types.EvidenceItem{
			ID:                id,
			Kind:              types.KindDefinitional,
			Claim:             c.Claim,
			Valence:           0,
			Src:               src,
			Time:              now.UnixNano(),
			Trust:             1.0,
			PreTransformTrust: 1.0,
		}

		var ok bool
		out.Evidence, ok = out.Evidence.Insert(item)
		if ok {
			added = append(added, id)
			out.Meta.Tags = semanticdef.IncrementConstraintCoverage(out.Meta.Tags, increment)
		}
	}

	nuRaw, err := recomputeNuRaw(ctx, out, p, sem, now)
	if err != nil {
		return s, state.RefinementRecord{}, err
	}
	out.NuRaw = nuRaw
	out.Touch(now, "NegDefine")

	rec := newRecord("NegDefine", now, before, beforeNu, out, p)
	rec.EvidenceAdded = added
	return out, rec, nil
}
