// Package state defines the per-(target, context) information state Σ[t,k]
// and the pure helpers that read its derived quantities. No function in this
// package mutates a State; every operator in internal/operators builds a new
// value and returns it alongside a RefinementRecord.
package state

import (
	"time"

	"github.com/aporia-systems/aporia/internal/evidence"
	"github.com/aporia-systems/aporia/internal/policy"
	"github.com/aporia-systems/aporia/internal/types"
)

// Crossing records a Recontextualize hop, (from_ctx, to_ctx, time).
type Crossing struct {
	From types.ContextID
	To   types.ContextID
	Time time.Time
}

// Metadata is the non-numeric bookkeeping a State carries: timestamps,
// operator history, context crossings, and the cooldown/clear-window
// timestamps the Conflict/PenaltyDecay operators consult.
type Metadata struct {
	CreationTime        time.Time
	LastModifiedTime    time.Time
	History             []string
	Crossings           []Crossing
	ConflictLastApplied *time.Time
	PenaltyClearStart   *time.Time
	Tags                map[string]string
}

func (m Metadata) clone() Metadata {
	out := m
	out.History = append([]string(nil), m.History...)
	out.Crossings = append([]Crossing(nil), m.Crossings...)
	if m.ConflictLastApplied != nil {
		t := *m.ConflictLastApplied
		out.ConflictLastApplied = &t
	}
	if m.PenaltyClearStart != nil {
		t := *m.PenaltyClearStart
		out.PenaltyClearStart = &t
	}
	out.Tags = make(map[string]string, len(m.Tags))
	for k, v := range m.Tags {
		out.Tags[k] = v
	}
	return out
}

// State is the immutable per-(target, context) record the calculus refines.
// The zero value is not usable; use New for an initial state.
type State struct {
	Target types.TargetID
	Ctx    types.ContextID

	NuRaw      float64
	Penalties  map[types.PenaltySource]float64
	Evidence   *evidence.Set

	Meta Metadata
}

// New returns the initial state for (target, ctx): ν_raw = 1.0, no
// penalties, no evidence, creation/last-modified stamped at now.
func New(target types.TargetID, ctx types.ContextID, mode types.DedupMode, now time.Time) State {
	return State{
		Target:    target,
		Ctx:       ctx,
		NuRaw:     1.0,
		Penalties: map[types.PenaltySource]float64{},
		Evidence:  evidence.New(mode),
		Meta: Metadata{
			CreationTime:     now,
			LastModifiedTime: now,
			Tags:             map[string]string{},
		},
	}
}

// Clone returns a deep copy of s. Operators start from Clone and mutate the
// copy, never the receiver.
func (s State) Clone() State {
	out := s
	out.Penalties = make(map[types.PenaltySource]float64, len(s.Penalties))
	for k, v := range s.Penalties {
		out.Penalties[k] = v
	}
	out.Meta = s.Meta.clone()
	// Evidence is itself immutable-by-convention (every Set method returns a
	// new *Set), so sharing the pointer across clones is safe.
	return out
}

// CombinePenalties folds ν_penalties into a single offset per policy's
// PenaltyMode: max takes the largest contribution, sum adds them all. The
// sum itself is not capped and can exceed 1; Nu clamps the final result to
// [0,1].
func CombinePenalties(penalties map[types.PenaltySource]float64, mode types.PenaltyCombine) float64 {
	if len(penalties) == 0 {
		return 0
	}
	switch mode {
	case types.CombineSum:
		var total float64
		for _, v := range penalties {
			total += v
		}
		return total
	default: // CombineMax
		var max float64
		for _, v := range penalties {
			if v > max {
				max = v
			}
		}
		return max
	}
}

// Nu returns the derived ν = clamp(ν_raw + combine(ν_penalties), 0, 1), the
// quantity invariant I1 requires be recomputable from ν_raw and ν_penalties
// alone.
func (s State) Nu(mode types.PenaltyCombine) float64 {
	v := s.NuRaw + CombinePenalties(s.Penalties, mode)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// recordHistory appends op to Meta.History, satisfying I7 (history length
// equals the number of mutating operator applications).
func (s *State) recordHistory(op string) {
	s.Meta.History = append(s.Meta.History, op)
}

// Touch stamps LastModifiedTime and appends op to history. Every mutating
// operator calls this exactly once on the clone it returns.
func (s *State) Touch(now time.Time, op string) {
	s.Meta.LastModifiedTime = now
	s.recordHistory(op)
}

// Sigma is the information state mapping (TargetID, ContextID) -> State.
// Hosts hold a Sigma value and swap it by reference between operator calls;
// the engine itself never stores one.
type Sigma map[Key]State

// Key is a Sigma lookup key.
type Key struct {
	Target types.TargetID
	Ctx    types.ContextID
}

// Get returns the state at (target, ctx), or the initial state (policy's
// dedup mode, stamped at now) if absent.
func (sigma Sigma) Get(target types.TargetID, ctx types.ContextID, p policy.Policy, now time.Time) State {
	if s, ok := sigma[Key{Target: target, Ctx: ctx}]; ok {
		return s
	}
	return New(target, ctx, p.DedupMode, now)
}

// With returns a new Sigma with s stored at its (Target, Ctx) key. Sigma
// itself is a plain map; With copies it so callers retain the immutable-swap
// discipline the rest of the engine uses.
func (sigma Sigma) With(s State) Sigma {
	out := make(Sigma, len(sigma)+1)
	for k, v := range sigma {
		out[k] = v
	}
	out[Key{Target: s.Target, Ctx: s.Ctx}] = s
	return out
}

// RefinementRecord captures what a single operator application did, the
// only channel by which operators communicate provenance to a host.
type RefinementRecord struct {
	Operator       string
	Time           time.Time
	Target         types.TargetID
	Ctx            types.ContextID
	BeforeNuRaw    float64
	BeforeNu       float64
	AfterNuRaw     float64
	AfterNu        float64
	PenaltiesDelta map[types.PenaltySource]float64
	EvidenceAdded  []types.EvidenceID
	Notes          string
}
