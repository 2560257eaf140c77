// Package query implements the two read-only operations over Σ: License,
// which evaluates whether a (target, context) state may be evaluated
// downstream, and QueryNext, which ranks states by refinement priority.
// Neither mutates state or produces a RefinementRecord.
package query

import (
	"sort"

	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/state"
	"github.com/aporia-systems/aporia/internal/types"
)

// Decision is the result of License: whether downstream truth evaluation may
// proceed against the queried state, and why.
type Decision struct {
	Licensed bool
	NuRaw    float64
	Nu       float64
	Reason   types.LicenseReason
}

// License evaluates s against p's thresholds. licensed holds exactly when
// nu_raw <= theta_eval_raw AND nu <= theta_eval. null_classified shadows
// every other reason once nu >= theta_null, regardless of the other checks.
func License(s state.State, p policy.Policy) Decision {
	nu := s.Nu(p.PenaltyMode)
	d := Decision{NuRaw: s.NuRaw, Nu: nu}

	structurallyVague := s.NuRaw > p.ThetaEvalRaw
	licensed := s.NuRaw <= p.ThetaEvalRaw && nu <= p.ThetaEval

	switch {
	case nu >= p.ThetaNull:
		d.Reason = types.ReasonNullClassified
	case structurallyVague:
		d.Reason = types.ReasonStructurallyVague
	case licensed:
		d.Reason = types.ReasonLicensed
	default:
		d.Reason = types.ReasonPenaltyBlock
	}

	d.Licensed = licensed
	return d
}

// Ranked is one entry in QueryNext's output: the (target, context) key and
// the state it was ranked from.
type Ranked struct {
	Key   state.Key
	State state.State
}

// QueryNext returns sigma's entries ranked by nu descending, then nu_raw
// descending, then last_modified ascending (oldest first) — the order hosts
// should prioritize for further refinement.
func QueryNext(sigma state.Sigma, p policy.Policy) []Ranked {
	out := make([]Ranked, 0, len(sigma))
	for k, s := range sigma {
		out = append(out, Ranked{Key: k, State: s})
	}

	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].State, out[j].State
		ni, nj := si.Nu(p.PenaltyMode), sj.Nu(p.PenaltyMode)
		if ni != nj {
			return ni > nj
		}
		if si.NuRaw != sj.NuRaw {
			return si.NuRaw > sj.NuRaw
		}
		return si.Meta.LastModifiedTime.Before(sj.Meta.LastModifiedTime)
	})
	return out
}
