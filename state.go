package aporia

import (
	"time"

	"github.com/aporia-systems/aporia/internal/state"
)

// State is the immutable per-(target, context) record the calculus
// refines. The zero value is not usable; use NewState or Sigma.Get for an
// initial state. Every operator takes a State and returns a new one —
// nothing in this package mutates one in place.
type State = state.State

// Metadata is the non-numeric bookkeeping a State carries: timestamps,
// operator history, context crossings, and the cooldown/clear-window
// timestamps the Conflict/PenaltyDecay operators consult.
type Metadata = state.Metadata

// Crossing records a Recontextualize hop, (from_ctx, to_ctx, time).
type Crossing = state.Crossing

// Sigma is the information state mapping (TargetID, ContextID) -> State. A
// host holds a Sigma value and swaps it by reference between operator
// calls; the engine itself never stores one.
type Sigma = state.Sigma

// Key is a Sigma lookup key.
type Key = state.Key

// RefinementRecord captures what a single operator application did: the
// before/after ν_raw and ν, the penalty deltas, any evidence added, and a
// free-form note. It is the only channel by which operators communicate
// provenance to a host.
type RefinementRecord = state.RefinementRecord

// NewState returns the initial state for (target, ctx): ν_raw = 1.0, no
// penalties, no evidence, creation/last-modified stamped at now.
func NewState(target TargetID, ctx ContextID, mode DedupMode, now time.Time) State {
	return state.New(target, ctx, mode, now)
}

// CombinePenalties folds a penalties map into a single offset per mode.
func CombinePenalties(penalties map[PenaltySource]float64, mode PenaltyCombine) float64 {
	return state.CombinePenalties(penalties, mode)
}
