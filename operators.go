package aporia

import (
	"context"

	"github.com/aporia-systems/aporia/internal/operators"
)

// Constraint is a single definitional statement NegDefine synthesizes into
// evidence. Src defaults to SystemAgent and Increment to the engine's
// default constraint-coverage bump when left zero.
type Constraint = operators.Constraint

// ChildSpec describes one Split child: the target it tracks and an
// optional relevance override used instead of the policy's relevance_fn
// when aggregating that child's evidence.
type ChildSpec = operators.ChildSpec

// SystemAgent is the sentinel source NegDefine attributes synthesized
// constraints to when the caller supplies none.
const SystemAgent = operators.SystemAgent

// Incorporate applies the boundary transform to each item in newEvidence,
// inserts it into state's evidence set (respecting dedup), recomputes
// definedness and ν_raw from the full set, then updates the conflict
// penalty to maintain invariant I4. Evidence failing validation (valence
// outside [-1,+1], trust outside [0,1], an unknown kind) is rejected with
// an *EngineError tagged KindInvalidEvidence before any mutation.
func Incorporate(ctx context.Context, s State, newEvidence []EvidenceItem, p Policy, clk Clock, roleFn RoleFunc, sem SemanticDefinednessProvider) (State, RefinementRecord, error) {
	return operators.Incorporate(ctx, s, newEvidence, p, clk, roleFn, sem)
}

// NegDefine synthesizes each constraint as a definitional evidence item,
// inserts it, and increments the state's constraint_coverage tag, then
// recomputes ν_raw.
func NegDefine(ctx context.Context, s State, constraints []Constraint, p Policy, clk Clock, sem SemanticDefinednessProvider) (State, RefinementRecord, error) {
	return operators.NegDefine(ctx, s, constraints, p, clk, sem)
}

// Merge unions stateB's evidence into a copy of stateA (the merged state
// keeps stateA's (target, context) identity), recomputes definedness, and
// adds a merge_rupture penalty if the union reveals conflict neither
// parent independently exhibited. Merging states for different targets is
// domain misuse and fails with KindDomainMisuse.
func Merge(ctx context.Context, stateA, stateB State, p Policy, clk Clock, sem SemanticDefinednessProvider) (State, RefinementRecord, error) {
	return operators.Merge(ctx, stateA, stateB, p, clk, sem)
}

// Recontextualize creates a new state bound to newCtx with the same
// evidence set. If newRoleFn differs from the context the evidence was
// ingested under, trust is re-derived from each item's stored
// pre-transform trust. Recontextualizing to the state's own context is
// domain misuse and fails with KindDomainMisuse.
func Recontextualize(ctx context.Context, s State, newCtx ContextID, newRoleFn RoleFunc, scopeSizeDelta float64, p Policy, clk Clock, sem SemanticDefinednessProvider) (State, RefinementRecord, error) {
	return operators.Recontextualize(ctx, s, newCtx, newRoleFn, scopeSizeDelta, p, clk, sem)
}

// Conflict recomputes the evidence-derived conflict score and, respecting
// the configured cooldown, raises or starts clearing the conflict penalty.
func Conflict(ctx context.Context, s State, p Policy, clk Clock) (State, RefinementRecord) {
	return operators.Conflict(ctx, s, p, clk)
}

// PenaltyDecay, when the policy enables penalty decay, multiplies each
// non-conflict penalty by the decay factor once per call, and decays the
// conflict penalty by one factor per elapsed clear-window step since its
// clearing started (not at all before that). Penalties that fall below the
// removal floor are removed. With decay disabled, penalties are unchanged.
func PenaltyDecay(ctx context.Context, s State, p Policy, clk Clock) (State, RefinementRecord) {
	return operators.PenaltyDecay(ctx, s, p, clk)
}

// Split creates one fresh state per entry in childSpecs, each holding a
// copy of the parent's evidence and fresh penalties. Split with zero
// children is domain misuse and fails with KindDomainMisuse.
func Split(ctx context.Context, parent State, childSpecs []ChildSpec, p Policy, clk Clock, sem SemanticDefinednessProvider) ([]State, []RefinementRecord, error) {
	return operators.Split(ctx, parent, childSpecs, p, clk, sem)
}

// Decay recomputes ν_raw from the current evidence set at the clock's
// current time, letting the aggregator's own age-based evidence decay show
// through without independently decaying anything itself.
func Decay(ctx context.Context, s State, p Policy, clk Clock, sem SemanticDefinednessProvider) (State, RefinementRecord, error) {
	return operators.Decay(ctx, s, p, clk, sem)
}
